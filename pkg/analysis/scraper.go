package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Scraper fabricates product pages instead of fetching them. Latency
// and failures are randomized so the demo traffic looks like real
// scraping without touching the network.
type Scraper struct {
	mu          sync.Mutex
	rng         *rand.Rand
	faker       *gofakeit.Faker
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
}

// NewScraper creates a mock scraper. failureRate is the probability
// (0..1) that a scrape reports SCRAPING_FAILED. seed 0 picks a
// time-based seed.
func NewScraper(failureRate float64, seed int64) *Scraper {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scraper{
		rng:         rand.New(rand.NewSource(seed)),
		faker:       gofakeit.New(uint64(seed)),
		failureRate: failureRate,
		minLatency:  30 * time.Millisecond,
		maxLatency:  250 * time.Millisecond,
	}
}

// Scrape validates the URL and fabricates a page after a simulated
// fetch delay. It honors ctx during the delay.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &Error{Code: CodeInvalidURL, Message: fmt.Sprintf("not a fetchable URL: %q", rawURL)}
	}

	s.mu.Lock()
	delay := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
	failed := s.rng.Float64() < s.failureRate
	title := s.faker.ProductName()
	content := s.faker.Paragraph(2, 4, 12, " ")
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	if failed {
		return nil, &Error{Code: CodeScrapingFailed, Message: "could not extract product markup"}
	}

	return &Page{
		URL:       rawURL,
		Title:     title,
		Content:   content,
		FetchedIn: delay,
	}, nil
}
