package normalize

import (
	"strings"

	"github.com/skillmap/harvester/internal/harvest"
)

// maxQualityPoints is the fixed denominator of the quality score. A
// required-only record earns 60 of these (0.375).
const maxQualityPoints = 160

// qualityScore computes the deterministic completeness/richness score.
// Required fields weigh 20 each, optional fields 10 each and skill
// richness up to 30; the result is earned/maxQualityPoints clamped to
// [0,1].
func qualityScore(posting harvest.JobPosting) float64 {
	score := 0

	required := []string{posting.JobTitle, posting.CompanyName, posting.JobCategory}
	for _, field := range required {
		if strings.TrimSpace(field) != "" {
			score += 20
		}
	}

	if strings.TrimSpace(posting.WorkLocation) != "" {
		score += 10
	}
	if len(posting.Keywords) > 0 {
		score += 10
	}
	if posting.SalaryRange.Min > 0 || posting.SalaryRange.Max > 0 {
		score += 10
	}

	switch {
	case len(posting.Keywords) >= 3:
		score += 30
	case len(posting.Keywords) >= 1:
		score += 15
	}

	result := float64(score) / float64(maxQualityPoints)
	if result > 1 {
		result = 1
	}
	if result < 0 {
		result = 0
	}
	return result
}
