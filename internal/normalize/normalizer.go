// Package normalize reconciles raw scraped listings into the canonical
// JobPosting schema through a fixed pipeline of transforms.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/harvest"
)

// degradedQualityScore marks records the pipeline could not fully
// normalize; they are kept, not dropped, so data-quality problems stay
// visible downstream.
const degradedQualityScore = 0.3

var deadlineRE = regexp.MustCompile(`(\d{4})[-.](\d{1,2})[-.](\d{1,2})`)

// Normalizer applies the normalization pipeline. It is a pure function of
// its input plus the static reference tables; salary scaling is the one
// per-site knob.
type Normalizer struct {
	salaryScales map[string]int64
	clock        harvest.Clock
	logger       *zap.Logger
}

// New builds a Normalizer. salaryScales maps site name to that source's
// unit convention; missing sites use DefaultSalaryScale.
func New(salaryScales map[string]int64, clock harvest.Clock, logger *zap.Logger) *Normalizer {
	if clock == nil {
		clock = harvest.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{salaryScales: salaryScales, clock: clock, logger: logger}
}

// Normalize converts one raw record into a canonical posting. It never
// fails: on any internal error it returns a degraded record carrying the
// minimal quality score and an error annotation.
func (n *Normalizer) Normalize(raw harvest.RawJobRecord) (posting harvest.JobPosting) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("normalization panicked",
				zap.String("site", raw.Site),
				zap.String("url", raw.URL),
				zap.Any("panic", r),
			)
			posting = n.degraded(raw, fmt.Sprintf("normalize panic: %v", r))
		}
	}()

	if err := validate(raw); err != nil {
		return n.degraded(raw, err.Error())
	}

	title := strings.TrimSpace(raw.Title)
	posting = harvest.JobPosting{
		ID:              harvest.ContentID(raw.URL),
		Source:          raw.Site,
		URL:             raw.URL,
		CompanyName:     strings.TrimSpace(raw.Company),
		WorkLocation:    strings.TrimSpace(raw.Location),
		JobTitle:        title,
		JobCategory:     categorize(title, raw.Tags),
		ExperienceLevel: experienceTier(raw.Experience),
		Keywords:        extractKeywords(title, raw.Tags),
		Deadline:        n.parseDeadline(raw.Deadline),
		ScrapedAt:       n.clock.Now(),
		IsActive:        true,
	}

	posting.CompanyName = canonCompany(posting.CompanyName)
	posting.WorkLocation = canonLocation(posting.WorkLocation)
	posting.Keywords = canonSkills(posting.Keywords)
	posting.SalaryRange = parseSalary(raw.Salary, n.scaleFor(raw.Site))
	posting.JobCategory = refineCategory(posting.JobCategory, posting.JobTitle, posting.Keywords)
	posting.QualityScore = qualityScore(posting)

	return posting
}

func (n *Normalizer) scaleFor(site string) int64 {
	if scale, ok := n.salaryScales[site]; ok && scale > 0 {
		return scale
	}
	return DefaultSalaryScale
}

func (n *Normalizer) degraded(raw harvest.RawJobRecord, annotation string) harvest.JobPosting {
	return harvest.JobPosting{
		ID:              harvest.ContentID(raw.URL),
		Source:          raw.Site,
		URL:             raw.URL,
		CompanyName:     strings.TrimSpace(raw.Company),
		WorkLocation:    strings.TrimSpace(raw.Location),
		JobTitle:        strings.TrimSpace(raw.Title),
		JobCategory:     CategoryOther,
		ExperienceLevel: ExperienceAny,
		SalaryRange:     harvest.SalaryRange{Negotiable: true},
		ScrapedAt:       n.clock.Now(),
		IsActive:        true,
		QualityScore:    degradedQualityScore,
		NormalizeError:  annotation,
	}
}

// validate is the single entry-point shape check; downstream stages may
// assume at least one identifying field is present.
func validate(raw harvest.RawJobRecord) error {
	if strings.TrimSpace(raw.Title) == "" &&
		strings.TrimSpace(raw.Company) == "" &&
		strings.TrimSpace(raw.URL) == "" {
		return fmt.Errorf("empty record: no title, company or url")
	}
	return nil
}

// experienceTier folds free-text experience requirements into the fixed
// tiers.
func experienceTier(experience string) string {
	exp := strings.ToLower(experience)
	switch {
	case containsAny(exp, "신입", "entry", "0년"):
		return ExperienceEntry
	case containsAny(exp, "1년", "2년", "3년"):
		return ExperienceJunior
	case containsAny(exp, "무관", "any"):
		return ExperienceAny
	default:
		return ExperienceAny
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parseDeadline turns a free-text deadline into an absolute timestamp.
// "상시" (always open) and unparseable text yield nil; "마감" (already
// closed) maps to the collection time.
func (n *Normalizer) parseDeadline(text string) *time.Time {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.Contains(trimmed, "상시") {
		return nil
	}
	if strings.Contains(trimmed, "마감") {
		now := n.clock.Now()
		return &now
	}

	m := deadlineRE.FindStringSubmatch(trimmed)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	return &t
}
