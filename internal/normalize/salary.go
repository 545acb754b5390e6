package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skillmap/harvester/internal/harvest"
)

// salaryCeiling bounds plausible compensation in base currency units.
// Anything above it is treated as a scrape artifact and zeroed.
const salaryCeiling = 200_000_000

// DefaultSalaryScale converts the boards' customary 만원 figures into base
// currency units.
const DefaultSalaryScale = 10_000

var digitsRE = regexp.MustCompile(`\d+`)

// parseSalary extracts the integer tokens from a raw compensation string,
// scales them by the source's unit convention and validates the range.
func parseSalary(text string, scale int64) harvest.SalaryRange {
	if scale <= 0 {
		scale = DefaultSalaryScale
	}

	negotiable := false
	for _, marker := range negotiableMarkers {
		if strings.Contains(text, marker) {
			negotiable = true
			break
		}
	}

	tokens := digitsRE.FindAllString(text, -1)
	if len(tokens) == 0 {
		return harvest.SalaryRange{Min: 0, Max: 0, Negotiable: true}
	}

	var minVal, maxVal int64
	first := true
	for _, token := range tokens {
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			// token too large for int64, certainly past the ceiling
			n = salaryCeiling + 1
		} else {
			n *= scale
		}
		if first {
			minVal, maxVal = n, n
			first = false
			continue
		}
		if n < minVal {
			minVal = n
		}
		if n > maxVal {
			maxVal = n
		}
	}

	if minVal > maxVal && maxVal > 0 {
		minVal, maxVal = maxVal, minVal
	}
	if minVal > salaryCeiling {
		minVal = 0
	}
	if maxVal > salaryCeiling {
		maxVal = 0
	}
	if minVal < 0 {
		minVal = 0
	}
	if maxVal < 0 {
		maxVal = 0
	}

	return harvest.SalaryRange{Min: minVal, Max: maxVal, Negotiable: negotiable}
}
