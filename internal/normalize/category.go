package normalize

import "strings"

// reclassifyThreshold is the confidence below which the ingest-time
// category assignment is redone from scratch.
const reclassifyThreshold = 0.7

// categorize assigns the ingest-time category: the first taxonomy entry
// with any keyword present in the title+skills text.
func categorize(title string, skills []string) string {
	text := strings.ToLower(title + " " + strings.Join(skills, " "))
	for _, category := range jobCategories {
		for _, keyword := range category.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return category.Name
			}
		}
	}
	return CategoryOther
}

// categoryConfidence scores how well the assigned category's keyword set
// covers the context: matched keywords over total keywords, capped at 1.
func categoryConfidence(category, context string) float64 {
	var keywords []string
	for _, c := range jobCategories {
		if c.Name == category {
			keywords = c.Keywords
			break
		}
	}
	if len(keywords) == 0 {
		return 0
	}

	lowered := strings.ToLower(context)
	matches := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			matches++
		}
	}
	confidence := float64(matches) / float64(len(keywords))
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// reclassify runs full classification across the taxonomy and keeps the
// category with the highest raw match count. Ties keep the
// earliest-declared category; no match at all yields CategoryOther.
func reclassify(context string) string {
	lowered := strings.ToLower(context)

	best := CategoryOther
	bestScore := 0
	for _, category := range jobCategories {
		score := 0
		for _, keyword := range category.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = category.Name
		}
	}
	return best
}

// refineCategory validates the current assignment against the record's
// title+skills context and re-runs classification when confidence is low.
func refineCategory(current, title string, skills []string) string {
	context := strings.TrimSpace(title + " " + strings.Join(skills, " "))
	if current == "" {
		current = CategoryOther
	}
	if categoryConfidence(current, context) < reclassifyThreshold {
		return reclassify(context)
	}
	return current
}
