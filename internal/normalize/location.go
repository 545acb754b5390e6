package normalize

import (
	"regexp"
	"strings"
)

var localitySuffixRE = regexp.MustCompile(`(시|구|동)$`)

// canonLocation maps known administrative regions to short canonical
// forms. Well-known sub-districts imply their parent region before the
// generic trailing-suffix cleanup applies.
func canonLocation(location string) string {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return ""
	}

	if mapped, ok := locationMapping[trimmed]; ok {
		return mapped
	}

	if strings.Contains(trimmed, "강남") && !strings.Contains(trimmed, "서울") {
		return "서울 강남구"
	}
	if strings.Contains(trimmed, "판교") && !strings.Contains(trimmed, "경기") {
		return "경기 성남 판교"
	}

	return strings.TrimSpace(localitySuffixRE.ReplaceAllString(trimmed, ""))
}
