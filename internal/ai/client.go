// Package ai talks to the external judging/expansion service over its
// generateContent JSON API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/harvest"
)

// ErrRateLimited signals the service's quota-exhaustion response. The
// caller's backoff policy keys off this error; every other failure is
// handled by degrading to a default.
var ErrRateLimited = errors.New("ai service rate limited")

// Config controls the client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client implements harvest.Judge over HTTP. Keyword expansions are
// memoized for the life of the process so a keyword repeated across runs
// costs one call.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu         sync.Mutex
	expansions map[string][]string
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-exp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		expansions: make(map[string][]string),
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ScoreBatch asks for one 0-100 suitability score per summary. Scores
// outside [0,100] or a response of the wrong length are treated as
// malformed output.
func (c *Client) ScoreBatch(ctx context.Context, summaries []harvest.RecordSummary) ([]int, error) {
	if len(summaries) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("당신은 채용 공고 품질 평가 전문가입니다. ")
	sb.WriteString("아래 공고들의 데이터 품질과 구직자에게의 유용성을 0에서 100 사이 정수로 평가하십시오.\n")
	sb.WriteString(fmt.Sprintf("JSON 정수 배열 하나만 출력하십시오. 배열 길이는 정확히 %d 이어야 합니다.\n\n", len(summaries)))
	for i, s := range summaries {
		sb.WriteString(fmt.Sprintf("--- 공고 %d ---\n직무명: %s\n회사명: %s\n직군: %s\n키워드: %s\n",
			i+1, s.Title, s.Company, s.Category, strings.Join(s.Keywords, ", ")))
	}

	text, err := c.generate(ctx, sb.String(), 512)
	if err != nil {
		return nil, err
	}

	var scores []int
	if err := json.Unmarshal([]byte(stripFences(text)), &scores); err != nil {
		return nil, fmt.Errorf("malformed score response: %w", err)
	}
	if len(scores) != len(summaries) {
		return nil, fmt.Errorf("malformed score response: got %d scores for %d records", len(scores), len(summaries))
	}
	for _, s := range scores {
		if s < 0 || s > 100 {
			return nil, fmt.Errorf("malformed score response: score %d out of range", s)
		}
	}
	return scores, nil
}

// ExpandKeywords asks for related search keywords. Malformed output
// degrades to the base keyword alone; only successful expansions are
// memoized.
func (c *Client) ExpandKeywords(ctx context.Context, base, category string) ([]string, error) {
	key := base + "\x00" + category
	c.mu.Lock()
	if cached, ok := c.expansions[key]; ok {
		c.mu.Unlock()
		return append([]string(nil), cached...), nil
	}
	c.mu.Unlock()

	prompt := fmt.Sprintf(
		"당신은 채용 검색 전문가입니다. %q 직군에서 검색 키워드 %q 와 연관된 검색 키워드를 "+
			"최대 5개 제안하십시오. JSON 문자열 배열 하나만 출력하십시오.",
		category, base)

	text, err := c.generate(ctx, prompt, 256)
	if err != nil {
		return nil, err
	}

	var expanded []string
	if err := json.Unmarshal([]byte(stripFences(text)), &expanded); err != nil {
		c.logger.Warn("malformed expansion response, using base keyword",
			zap.String("keyword", base), zap.Error(err))
		return []string{base}, nil
	}

	keywords := dedupeKeywords(base, expanded)
	c.mu.Lock()
	c.expansions[key] = keywords
	c.mu.Unlock()
	return append([]string(nil), keywords...), nil
}

// generate performs one generateContent call and returns the model text.
func (c *Client) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     0.2,
			MaxOutputTokens: maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ai service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai service returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from ai service")
	}
	return strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text), nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// its JSON in.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 {
		return trimmed
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func dedupeKeywords(base string, expanded []string) []string {
	seen := map[string]bool{strings.ToLower(base): true}
	keywords := []string{base}
	for _, k := range expanded {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		keywords = append(keywords, k)
	}
	return keywords
}
