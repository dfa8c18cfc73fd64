package browsers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Catalog is a parsed _locales/<lang>/messages.json
type Catalog map[string]json.RawMessage

// englishLocales are tried in order when a manifest name is a placeholder
var englishLocales = []string{"en", "en_US", "en-US"}

// isPlaceholder reports whether a manifest field indirects through the locale catalog
func isPlaceholder(field string) bool {
	return strings.Contains(field, "MSG")
}

// LoadCatalog reads the English message catalog of an unpacked extension version
func LoadCatalog(versionDir string) (Catalog, error) {
	for _, locale := range englishLocales {
		messagesPath := filepath.Join(versionDir, "_locales", locale, "messages.json")
		data, err := os.ReadFile(messagesPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, messagesPath, err)
		}
		var catalog Catalog
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, messagesPath, err)
		}
		return catalog, nil
	}
	return nil, fmt.Errorf("%w: no English locale under %s", ErrMissingArtifact, filepath.Join(versionDir, "_locales"))
}

// ResolveMessage handles __MSG_ placeholders. Some packages store a plain string
// that is itself another catalog key; that indirection is followed once.
func ResolveMessage(raw string, catalog Catalog) (string, error) {
	msgKey := strings.TrimPrefix(raw, "__MSG_")
	msgKey = strings.TrimSuffix(msgKey, "__")

	value, ok := catalog[strings.ToLower(msgKey)]
	if !ok {
		value, _ = json.Marshal(msgKey)
	}

	if message, isObject, err := messageOf(value); isObject || err != nil {
		return message, err
	}

	var nested string
	if shapeOf(value) != "string" {
		return "", fmt.Errorf("%w: key %q holds %s", ErrUnexpectedCatalogShape, msgKey, shapeOf(value))
	}
	if err := json.Unmarshal(value, &nested); err != nil {
		return "", fmt.Errorf("%w: key %q: %v", ErrUnexpectedCatalogShape, msgKey, err)
	}

	second, ok := catalog[nested]
	if !ok {
		return nested, nil
	}
	message, isObject, err := messageOf(second)
	if err != nil {
		return "", err
	}
	if !isObject {
		return "", fmt.Errorf("%w: key %q holds %s", ErrUnexpectedCatalogShape, nested, shapeOf(second))
	}
	return message, nil
}

// messageOf extracts the "message" field when value is an object
func messageOf(value json.RawMessage) (string, bool, error) {
	if shapeOf(value) != "object" {
		return "", false, nil
	}
	var entry struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(value, &entry); err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrUnexpectedCatalogShape, err)
	}
	if len(entry.Message) == 0 || shapeOf(entry.Message) == "null" {
		return "", true, nil
	}
	var message string
	if err := json.Unmarshal(entry.Message, &message); err != nil {
		return string(entry.Message), true, nil
	}
	return message, true, nil
}

func shapeOf(value json.RawMessage) string {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return "nothing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	}
	return "number"
}
