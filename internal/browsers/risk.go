package browsers

import "strings"

// highRiskPermissions grant broad access to browsing data or the clipboard
var highRiskPermissions = map[string]bool{
	"clipboardWrite": true,
	"<all_urls>":     true,
	"tabs":           true,
	"cookies":        true,
}

// ClassifyPermissions flags a permission set that requests any high-risk capability.
// This is a coarse, advisory heuristic and not a security verdict.
func ClassifyPermissions(perms *PermissionSet) RiskFlag {
	if perms == nil {
		return Clear
	}
	for _, p := range perms.Permissions {
		if highRiskPermissions[p] || strings.Contains(p, "://*/") {
			return Flagged
		}
	}
	return Clear
}
