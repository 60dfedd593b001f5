package generation

import "strings"

// knownRegions maps lowercase needles found in free text to canonical
// region names, checked in order so more specific names win. Deliberately
// small: the conversational context's own region key always takes
// precedence over this scan.
var knownRegions = []struct {
	needle    string
	canonical string
}{
	{"abu dhabi", "Abu Dhabi"},
	{"dubai", "Dubai"},
	{"sharjah", "Sharjah"},
	{"uae", "UAE"},
	{"emirates", "UAE"},
	{"riyadh", "Riyadh"},
	{"saudi", "Saudi Arabia"},
	{"doha", "Doha"},
	{"qatar", "Qatar"},
	{"kuwait", "Kuwait"},
	{"bahrain", "Bahrain"},
	{"oman", "Oman"},
	{"singapore", "Singapore"},
	{"india", "India"},
	{"united states", "United States"},
	{"europe", "Europe"},
}

// DetectRegion resolves a region for policy generation: the context map
// first, then a keyword scan over the prompt. Empty means no policy task
// is dispatched.
func DetectRegion(contextMap map[string]any, prompt string) string {
	if contextMap != nil {
		if r, ok := contextMap["region"].(string); ok && strings.TrimSpace(r) != "" {
			return strings.TrimSpace(r)
		}
	}
	lower := strings.ToLower(prompt)
	for _, kr := range knownRegions {
		if strings.Contains(lower, kr.needle) {
			return kr.canonical
		}
	}
	return ""
}
