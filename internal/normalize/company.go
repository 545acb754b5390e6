package normalize

import (
	"regexp"
	"strings"
)

var (
	corporateSuffixRE = regexp.MustCompile(`주식회사|㈜|\(주\)`)
	whitespaceRE      = regexp.MustCompile(`\s+`)
)

// canonCompany strips corporate-suffix noise, collapses whitespace and
// folds known aliases onto one canonical name.
func canonCompany(name string) string {
	if name == "" {
		return ""
	}
	cleaned := corporateSuffixRE.ReplaceAllString(strings.TrimSpace(name), "")
	cleaned = strings.TrimSpace(whitespaceRE.ReplaceAllString(cleaned, " "))

	lowered := strings.ToLower(cleaned)
	for canonical, aliases := range companyAliases {
		for _, alias := range aliases {
			if lowered == strings.ToLower(alias) {
				return canonical
			}
		}
	}
	return cleaned
}
