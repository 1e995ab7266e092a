package analysis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// ModelName is the mock model the parser pretends to call.
const ModelName = "pulse-extract-1"

// Parser fabricates the LLM half of the pipeline: structured product
// data plus derived insights, with simulated inference latency and
// occasional timeouts.
type Parser struct {
	mu          sync.Mutex
	rng         *rand.Rand
	faker       *gofakeit.Faker
	timeoutRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
}

// NewParser creates a mock parser. timeoutRate is the probability
// (0..1) that inference reports LLM_TIMEOUT. seed 0 picks a time-based
// seed.
func NewParser(timeoutRate float64, seed int64) *Parser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Parser{
		rng:         rand.New(rand.NewSource(seed)),
		faker:       gofakeit.New(uint64(seed)),
		timeoutRate: timeoutRate,
		minLatency:  100 * time.Millisecond,
		maxLatency:  900 * time.Millisecond,
	}
}

var sentiments = []string{"positive", "neutral", "negative"}

// Parse turns a scraped page into structured data and insights after a
// simulated inference delay. It honors ctx during the delay.
func (p *Parser) Parse(ctx context.Context, page *Page) (Product, Insights, error) {
	p.mu.Lock()
	delay := p.minLatency + time.Duration(p.rng.Int63n(int64(p.maxLatency-p.minLatency)))
	timedOut := p.rng.Float64() < p.timeoutRate

	product := Product{
		Title:       page.Title,
		Brand:       p.faker.Company(),
		Category:    p.faker.ProductCategory(),
		Price:       p.faker.Price(5, 2500),
		Currency:    "USD",
		Rating:      float64(p.rng.Intn(31)+20) / 10, // 2.0 .. 5.0
		ReviewCount: p.rng.Intn(5000),
		InStock:     p.rng.Float64() < 0.85,
	}

	sentiment := sentiments[p.rng.Intn(len(sentiments))]
	features := make([]string, 3+p.rng.Intn(3))
	for i := range features {
		features[i] = p.faker.ProductFeature()
	}
	insights := Insights{
		Sentiment:      sentiment,
		SentimentScore: p.rng.Float64()*2 - 1,
		KeyFeatures:    features,
		Summary:        p.faker.Sentence(12),
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return Product{}, Insights{}, ctx.Err()
	case <-time.After(delay):
	}

	if timedOut {
		return Product{}, Insights{}, &Error{Code: CodeLLMTimeout, Message: "model did not respond in time"}
	}

	return product, insights, nil
}
