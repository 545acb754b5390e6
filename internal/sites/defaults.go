package sites

import "github.com/skillmap/harvester/internal/config"

// Defaults returns the built-in site catalog. Selector strings track each
// board's current markup; override them in config when a board redesigns.
func Defaults() map[string]config.SiteConfig {
	return map[string]config.SiteConfig{
		"saramin": {
			BaseURL:      "https://www.saramin.co.kr",
			SearchPath:   "/zf_user/jobs/list/domestic",
			KeywordParam: "searchword",
			ExtraParams: map[string]string{
				"recruitFilterType": "domestic",
				"searchType":        "search",
			},
			Selectors: config.SelectorConfig{
				JobList:    ".item_recruit",
				Title:      ".job_tit a",
				Company:    ".corp_name a",
				Location:   ".job_condition span:first-child",
				Experience: ".job_condition span:nth-child(2)",
				Salary:     ".job_condition span:last-child",
				Deadline:   ".job_date .date",
				URL:        ".job_tit a",
				Tags:       ".job_sector a",
			},
			RateLimitRPS: 1.0 / 3,
			SalaryScale:  10000,
		},
		"jobkorea": {
			BaseURL:      "https://www.jobkorea.co.kr",
			SearchPath:   "/recruit/joblist",
			KeywordParam: "stext",
			Selectors: config.SelectorConfig{
				JobList: ".recruit-info",
				Title:   ".post-list-corp-name a",
				Company: ".post-list-info .corp-name a",
				URL:     ".post-list-corp-name a",
			},
			RateLimitRPS: 1.0 / 3.5,
			SalaryScale:  10000,
		},
		"comento": {
			BaseURL:      "https://comento.kr",
			SearchPath:   "/career/dreamverse",
			KeywordParam: "keyword",
			Selectors: config.SelectorConfig{
				JobList:    `[data-testid="job-card"]`,
				Title:      ".job-title",
				Company:    ".company-name",
				Location:   ".location",
				Experience: ".experience",
				Tags:       ".skill-tag",
				URL:        "a",
			},
			RateLimitRPS: 0.25,
			SalaryScale:  10000,
		},
		"securityfarm": {
			BaseURL:      "https://securityfarm.co.kr",
			SearchPath:   "/job",
			KeywordParam: "keyword",
			Selectors: config.SelectorConfig{
				JobList:    ".job-item",
				Title:      ".job-title",
				Company:    ".company-name",
				Location:   ".location",
				Experience: ".experience",
				Tags:       ".skill",
				Deadline:   ".deadline",
				URL:        "a",
			},
			RateLimitRPS: 0.5,
			SalaryScale:  10000,
		},
		"worknet": {
			BaseURL:      "https://www.work24.go.kr",
			SearchPath:   "/wk/a/b/1200/retriveDtlEmpSrchList.do",
			KeywordParam: "srcKeyword",
			Selectors: config.SelectorConfig{
				JobList:  ".cp-info-in",
				Title:    ".cp-info-in .t3 a",
				Company:  ".cp-name",
				Location: ".cp-info .site",
				Deadline: ".cp-info .date",
				URL:      ".cp-info-in .t3 a",
			},
			RateLimitRPS: 0.5,
			SalaryScale:  10000,
		},
	}
}
