// Package sites holds the per-site source adapters that turn a keyword
// into a search URL and fetched markup into raw records.
package sites

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/config"
	"github.com/skillmap/harvester/internal/harvest"
)

// Adapter implements harvest.SourceAdapter for one job board, driven
// entirely by the site's selector configuration. Sites differ in markup,
// not in behavior, so one adapter type with per-site selectors replaces a
// subclass per site.
type Adapter struct {
	name   string
	cfg    config.SiteConfig
	logger *zap.Logger
}

// NewAdapter builds an adapter for one site.
func NewAdapter(name string, cfg config.SiteConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{name: name, cfg: cfg, logger: logger.With(zap.String("site", name))}
}

// Name returns the site identifier.
func (a *Adapter) Name() string { return a.name }

// SearchURL constructs the deterministic listing URL for a keyword. Extra
// params are appended in sorted order so the same site+keyword always
// yields the same URL (the visited set depends on that).
func (a *Adapter) SearchURL(keyword string) string {
	values := url.Values{}
	keys := make([]string, 0, len(a.cfg.ExtraParams))
	for k := range a.cfg.ExtraParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, a.cfg.ExtraParams[k])
	}
	param := a.cfg.KeywordParam
	if param == "" {
		param = "keyword"
	}
	if keyword != "" {
		values.Set(param, keyword)
	}

	target := a.cfg.BaseURL + a.cfg.SearchPath
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// Parse extracts raw records from a listing page. A listing missing its
// expected fields is logged and skipped; it never aborts the rest of the
// page.
func (a *Adapter) Parse(body []byte, baseURL string) []harvest.RawJobRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("parse listing page failed", zap.Error(err))
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	sel := a.cfg.Selectors
	var records []harvest.RawJobRecord
	doc.Find(sel.JobList).Each(func(i int, item *goquery.Selection) {
		record := harvest.RawJobRecord{
			Site:       a.name,
			Title:      text(item, sel.Title),
			Company:    text(item, sel.Company),
			Location:   text(item, sel.Location),
			Experience: text(item, sel.Experience),
			Salary:     text(item, sel.Salary),
			Deadline:   text(item, sel.Deadline),
			URL:        a.href(item, sel.URL, base),
			Tags:       texts(item, sel.Tags),
		}
		if record.Title == "" && record.URL == "" {
			a.logger.Debug("listing skipped, no title or url", zap.Int("index", i))
			return
		}
		records = append(records, record)
	})
	return records
}

func (a *Adapter) href(item *goquery.Selection, selector string, base *url.URL) string {
	if selector == "" {
		return ""
	}
	raw, ok := item.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func texts(item *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	item.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
