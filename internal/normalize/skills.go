package normalize

import "strings"

// canonSkills lower-cases and trims each raw skill, folds known variants
// onto canonical spellings and deduplicates. Single-character leftovers
// are noise and dropped.
func canonSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		trimmed := strings.TrimSpace(skill)
		if trimmed == "" {
			continue
		}
		mapped, ok := skillMapping[strings.ToLower(trimmed)]
		if !ok {
			mapped = trimmed
		}
		if len([]rune(mapped)) <= 1 {
			continue
		}
		if _, dup := seen[mapped]; dup {
			continue
		}
		seen[mapped] = struct{}{}
		out = append(out, mapped)
	}
	return out
}

// extractKeywords mines the tech vocabulary out of the title and tags and
// merges it with the tags themselves.
func extractKeywords(title string, tags []string) []string {
	text := strings.ToLower(title + " " + strings.Join(tags, " "))

	merged := make([]string, 0, len(tags)+4)
	for _, keyword := range techKeywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			merged = append(merged, keyword)
		}
	}
	merged = append(merged, tags...)
	return canonSkills(merged)
}
