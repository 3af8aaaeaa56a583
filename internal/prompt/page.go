package prompt

import (
	"strings"

	"github.com/hpungsan/objective/internal/activity"
)

// MaxSectionLen is the longest a joined page section may be, in runes.
const MaxSectionLen = 1500

const ellipsis = "..."

// FormatPage renders a page snapshot as a labelled plain-text block.
// Headers, navigation and main content are each bounded by MaxSectionLen.
func FormatPage(p activity.PageContent) string {
	sections := []struct {
		label string
		body  string
	}{
		{"URL", p.URL},
		{"Title", p.Title},
		{"Headers", truncate(p.Headers)},
		{"Navigation", truncate(p.Navigation)},
		{"Main Content", truncate(p.MainContent)},
		{"Timestamp", p.Timestamp},
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, "# "+s.label+":\n"+s.body)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// truncate joins items with newlines and cuts the result to MaxSectionLen
// runes, the last three of which become an ellipsis.
func truncate(items []string) string {
	joined := strings.Join(items, "\n")
	runes := []rune(joined)
	if len(runes) <= MaxSectionLen {
		return joined
	}
	return string(runes[:MaxSectionLen-len(ellipsis)]) + ellipsis
}
