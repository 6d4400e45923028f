package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"ktm_scrooper/models"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// Fingerprint derives a stable identity for a rate plan from its normalized
// title, network, and the tab it was found under. The same plan keeps its
// fingerprint across runs even when its card position or price changes.
func Fingerprint(plan *models.RawPlan) string {
	title := plan.ModalTitle
	if title == "" {
		title = plan.ListTitle
	}
	input := fmt.Sprintf("%s|%s|%s|%s",
		plan.Site,
		NormalizeTitle(plan.TabName),
		Network(plan.SubtabName),
		NormalizeTitle(title),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeTitle lowercases ASCII, collapses whitespace, and strips
// decorative brackets so cosmetic renames don't change identity.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = strings.NewReplacer("[", " ", "]", " ", "(", " ", ")", " ").Replace(s)
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Network extracts the network generation from a subtab label,
// e.g. "LTE 요금제" -> "lte", "5G 요금제" -> "5g".
func Network(subtab string) string {
	u := strings.ToUpper(subtab)
	switch {
	case strings.Contains(u, "5G"):
		return "5g"
	case strings.Contains(u, "LTE"):
		return "lte"
	default:
		return ""
	}
}
