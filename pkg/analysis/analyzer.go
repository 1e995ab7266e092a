package analysis

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes the mock analysis pipeline.
type Config struct {
	// ScrapeFailureRate is the probability a scrape fails (0..1).
	ScrapeFailureRate float64
	// LLMTimeoutRate is the probability inference times out (0..1).
	LLMTimeoutRate float64
	// RequestsPerSecond caps the analysis throughput; requests beyond
	// the burst are rejected with RATE_LIMITED. 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Seed makes generated data reproducible; 0 picks time-based seeds.
	Seed int64
	// Cache is optional.
	Cache Cache
}

// Service runs the scrape -> parse pipeline for one URL at a time.
// It is safe for concurrent use.
type Service struct {
	scraper *Scraper
	parser  *Parser
	limiter *rate.Limiter
	cache   Cache
}

// NewService builds the pipeline from config.
func NewService(cfg Config) *Service {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	parserSeed := cfg.Seed
	if parserSeed != 0 {
		parserSeed++ // decorrelate the two generators
	}
	return &Service{
		scraper: NewScraper(cfg.ScrapeFailureRate, cfg.Seed),
		parser:  NewParser(cfg.LLMTimeoutRate, parserSeed),
		limiter: limiter,
		cache:   cfg.Cache,
	}
}

// Analyze runs the full pipeline for one product URL. Failures are
// returned as *Error with a machine-readable code; context errors pass
// through unchanged.
func (s *Service) Analyze(ctx context.Context, url string) (*Result, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, &Error{Code: CodeRateLimited, Message: "analysis rate limit exceeded"}
	}

	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, url); ok {
			return res, nil
		}
	}

	page, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	parseStart := time.Now()
	product, insights, err := s.parser.Parse(ctx, page)
	if err != nil {
		return nil, err
	}

	res := &Result{
		URL:          url,
		Product:      product,
		Insights:     insights,
		Model:        ModelName,
		ScrapeTimeMs: page.FetchedIn.Milliseconds(),
		ParseTimeMs:  time.Since(parseStart).Milliseconds(),
		AnalyzedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		s.cache.Set(ctx, url, res)
	}

	return res, nil
}
