package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillmap/harvester/internal/harvest"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestNormalizer() *Normalizer {
	return New(
		map[string]int64{"saramin": 10000},
		fixedClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		nil,
	)
}

func TestNormalizeFullRecord(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	raw := harvest.RawJobRecord{
		Title:      "백엔드 개발자 (Python)",
		Company:    "네이버주식회사",
		Location:   "경기도",
		Experience: "신입",
		Salary:     "3000~4000(협의가능)",
		Deadline:   "~2026.09.30",
		URL:        "https://www.saramin.co.kr/job/1",
		Tags:       []string{"python3", "Django", "aws"},
		Site:       "saramin",
	}

	posting := n.Normalize(raw)

	require.Equal(t, harvest.ContentID(raw.URL), posting.ID)
	require.Equal(t, "네이버", posting.CompanyName)
	require.Equal(t, "경기", posting.WorkLocation)
	require.Equal(t, "IT/개발", posting.JobCategory)
	require.Equal(t, ExperienceEntry, posting.ExperienceLevel)
	require.Contains(t, posting.Keywords, "Python")
	require.Contains(t, posting.Keywords, "AWS")
	require.NotContains(t, posting.Keywords, "python3")
	require.NotNil(t, posting.Deadline)
	require.Equal(t, 2026, posting.Deadline.Year())
	require.True(t, posting.IsActive)
	require.Empty(t, posting.NormalizeError)
	// everything present and rich: 120 of 160 points
	require.InDelta(t, 0.75, posting.QualityScore, 1e-9)
}

func TestNormalizeIsTotalOnEmptyRecord(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	posting := n.Normalize(harvest.RawJobRecord{Site: "saramin"})

	require.Equal(t, 0.3, posting.QualityScore)
	require.NotEmpty(t, posting.NormalizeError)
	require.Equal(t, CategoryOther, posting.JobCategory)
}

func TestParseSalary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want harvest.SalaryRange
	}{
		{
			name: "range with negotiable marker",
			in:   "3000~4000(협의가능)",
			want: harvest.SalaryRange{Min: 30_000_000, Max: 40_000_000, Negotiable: true},
		},
		{
			name: "no digits",
			in:   "회사내규에 따름",
			want: harvest.SalaryRange{Min: 0, Max: 0, Negotiable: true},
		},
		{
			name: "implausible bound zeroed",
			in:   "9999999999",
			want: harvest.SalaryRange{Min: 0, Max: 0, Negotiable: false},
		},
		{
			name: "single figure",
			in:   "연봉 5000만원",
			want: harvest.SalaryRange{Min: 50_000_000, Max: 50_000_000, Negotiable: false},
		},
		{
			name: "interview marker",
			in:   "면접 후 결정",
			want: harvest.SalaryRange{Min: 0, Max: 0, Negotiable: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, parseSalary(tc.in, 10000))
		})
	}
}

func TestParseSalarySwapsInvertedBounds(t *testing.T) {
	t.Parallel()

	got := parseSalary("4000~3000", 10000)
	require.Equal(t, int64(30_000_000), got.Min)
	require.Equal(t, int64(40_000_000), got.Max)
}

func TestReclassifyBackendDeveloper(t *testing.T) {
	t.Parallel()

	category := refineCategory("", "백엔드 개발자", []string{"Python", "Django"})
	require.Equal(t, "IT/개발", category)
}

func TestRefineCategoryKeepsConfidentAssignment(t *testing.T) {
	t.Parallel()

	// Most of the 보안 vocabulary appears, confidence clears the bar and
	// the assignment survives untouched.
	title := "보안 security 침해대응 보안관제 soc 취약점 포렌식 정보보안"
	require.Equal(t, "보안", refineCategory("보안", title, []string{"네트워크보안", "인프라보안"}))
}

func TestReclassifyNoMatchYieldsOther(t *testing.T) {
	t.Parallel()

	require.Equal(t, CategoryOther, refineCategory("", "수의사 모집", nil))
}

func TestQualityScoreRequiredOnly(t *testing.T) {
	t.Parallel()

	posting := harvest.JobPosting{
		JobTitle:    "백엔드 개발자",
		CompanyName: "네이버",
		JobCategory: "IT/개발",
	}

	// 60 earned of 160 possible.
	require.InDelta(t, 0.375, qualityScore(posting), 1e-9)
}

func TestQualityScoreRichRecord(t *testing.T) {
	t.Parallel()

	posting := harvest.JobPosting{
		JobTitle:     "백엔드 개발자",
		CompanyName:  "네이버",
		JobCategory:  "IT/개발",
		WorkLocation: "서울",
		Keywords:     []string{"Python", "Django", "AWS"},
		SalaryRange:  harvest.SalaryRange{Min: 30_000_000, Max: 40_000_000},
	}

	require.InDelta(t, 0.75, qualityScore(posting), 1e-9)
}

func TestCanonCompany(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"주식회사카카오":              "카카오",
		"(주) 네이버주식회사":          "네이버",
		"삼성전자  주식회사":           "삼성전자",
		"samsung electronics": "삼성전자",
		"스타트업랩스":              "스타트업랩스",
		"":                    "",
	}
	for in, want := range cases {
		require.Equal(t, want, canonCompany(in), "input %q", in)
	}
}

func TestCanonLocation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"서울특별시":  "서울",
		"재택근무":   "재택",
		"강남 테헤란로": "서울 강남구",
		"판교":     "경기 성남 판교",
		"수원시":    "수원",
		"":       "",
	}
	for in, want := range cases {
		require.Equal(t, want, canonLocation(in), "input %q", in)
	}
}

func TestCanonSkillsDeduplicates(t *testing.T) {
	t.Parallel()

	got := canonSkills([]string{"js", " JavaScript ", "reactjs", "react.js", "c", ""})
	require.Equal(t, []string{"JavaScript", "React"}, got)
}

func TestExperienceTier(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"신입":       ExperienceEntry,
		"Entry":    ExperienceEntry,
		"경력 2년 이상": ExperienceJunior,
		"경력무관":     ExperienceAny,
		"":         ExperienceAny,
	}
	for in, want := range cases {
		require.Equal(t, want, experienceTier(in), "input %q", in)
	}
}

func TestParseDeadline(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()

	require.Nil(t, n.parseDeadline(""))
	require.Nil(t, n.parseDeadline("상시채용"))
	require.Nil(t, n.parseDeadline("D-7"))

	closed := n.parseDeadline("마감")
	require.NotNil(t, closed)

	dated := n.parseDeadline("~2026.09.30")
	require.NotNil(t, dated)
	require.Equal(t, time.September, dated.Month())
	require.Equal(t, 30, dated.Day())
}
