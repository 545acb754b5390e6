package sites

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillmap/harvester/internal/config"
)

const saraminListingHTML = `
<html><body>
<div class="item_recruit">
  <h2 class="job_tit"><a href="/zf_user/jobs/relay/view?rec_idx=101">백엔드 개발자 (Python)</a></h2>
  <strong class="corp_name"><a href="/company/1">네이버주식회사</a></strong>
  <div class="job_condition">
    <span>서울 강남구</span>
    <span>신입</span>
    <span>3000~4000(협의가능)</span>
  </div>
  <div class="job_date"><span class="date">~2026.09.30</span></div>
  <div class="job_sector"><a>Python</a><a>Django</a><a>AWS</a></div>
</div>
<div class="item_recruit">
  <h2 class="job_tit"><a href="/zf_user/jobs/relay/view?rec_idx=102">보안관제 담당자</a></h2>
  <strong class="corp_name"><a href="/company/2">시큐리티팜</a></strong>
  <div class="job_condition"><span>판교</span></div>
</div>
<div class="item_recruit">
  <!-- a broken listing with neither title nor link must be skipped -->
  <div class="job_condition"><span>서울</span></div>
</div>
</body></html>`

func saraminAdapter() *Adapter {
	return NewAdapter("saramin", Defaults()["saramin"], nil)
}

func TestAdapterParse(t *testing.T) {
	t.Parallel()

	records := saraminAdapter().Parse([]byte(saraminListingHTML), "https://www.saramin.co.kr")

	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "saramin", first.Site)
	require.Equal(t, "백엔드 개발자 (Python)", first.Title)
	require.Equal(t, "네이버주식회사", first.Company)
	require.Equal(t, "서울 강남구", first.Location)
	require.Equal(t, "신입", first.Experience)
	require.Equal(t, "3000~4000(협의가능)", first.Salary)
	require.Equal(t, "~2026.09.30", first.Deadline)
	require.Equal(t, "https://www.saramin.co.kr/zf_user/jobs/relay/view?rec_idx=101", first.URL)
	require.Equal(t, []string{"Python", "Django", "AWS"}, first.Tags)

	second := records[1]
	require.Equal(t, "보안관제 담당자", second.Title)
	require.Empty(t, second.Salary)
}

func TestAdapterParseGarbage(t *testing.T) {
	t.Parallel()

	require.Empty(t, saraminAdapter().Parse([]byte("not html at all"), ""))
	require.Empty(t, saraminAdapter().Parse(nil, ""))
}

func TestSearchURLDeterministic(t *testing.T) {
	t.Parallel()

	a := saraminAdapter()
	first := a.SearchURL("React")
	second := a.SearchURL("React")

	require.Equal(t, first, second)
	require.Contains(t, first, "searchword=React")
	require.Contains(t, first, "recruitFilterType=domestic")
	require.NotEqual(t, first, a.SearchURL("Vue"))
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil, nil)

	for _, site := range []string{"saramin", "jobkorea", "comento", "securityfarm", "worknet"} {
		adapter, ok := registry.Lookup(site)
		require.True(t, ok, "site %s missing", site)
		require.Equal(t, site, adapter.Name())
	}

	_, ok := registry.Lookup("unknown-board")
	require.False(t, ok)
}

func TestRegistryOverride(t *testing.T) {
	t.Parallel()

	overrides := map[string]config.SiteConfig{
		"saramin": {
			BaseURL:      "https://staging.saramin.example",
			SearchPath:   "/jobs",
			KeywordParam: "q",
		},
	}
	registry := NewRegistry(overrides, nil)

	adapter, ok := registry.Lookup("saramin")
	require.True(t, ok)
	require.Contains(t, adapter.SearchURL("React"), "https://staging.saramin.example/jobs?q=React")
}
