package browsers

import (
	"encoding/json"
	"fmt"
)

// parsePermissionBlock decodes a {permissions, origins} object. An absent or null
// block yields nil so "no permissions declared" stays distinct from an empty grant.
func parsePermissionBlock(raw json.RawMessage) (*PermissionSet, error) {
	switch shapeOf(raw) {
	case "nothing", "null":
		return nil, nil
	case "object":
	default:
		return nil, fmt.Errorf("%w: expected object, got %s", ErrPermissionType, shapeOf(raw))
	}

	var block struct {
		Permissions json.RawMessage `json:"permissions"`
		Origins     json.RawMessage `json:"origins"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionType, err)
	}
	perms, err := stringList(block.Permissions)
	if err != nil {
		return nil, err
	}
	origins, err := stringList(block.Origins)
	if err != nil {
		return nil, err
	}
	return &PermissionSet{Permissions: perms, Origins: origins}, nil
}

// stringList decodes a JSON array of permission entries. Non-string entries, such as
// {"fileSystem": ["write"]} in packaged apps, are kept as their compact JSON text.
func stringList(raw json.RawMessage) ([]string, error) {
	switch shapeOf(raw) {
	case "nothing", "null":
		return nil, nil
	case "array":
	default:
		return nil, fmt.Errorf("%w: expected list, got %s", ErrPermissionType, shapeOf(raw))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionType, err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && shapeOf(item) == "string" {
			out = append(out, s)
			continue
		}
		compact, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPermissionType, err)
		}
		out = append(out, string(compact))
	}
	return out, nil
}
