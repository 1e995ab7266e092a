package analysis

import (
	"net/http"
	"time"
)

// Machine-readable error codes carried in analysis error payloads.
const (
	CodeInvalidURL     = "INVALID_URL"
	CodeScrapingFailed = "SCRAPING_FAILED"
	CodeLLMTimeout     = "LLM_TIMEOUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeAnalysisFailed = "ANALYSIS_FAILED"
)

// Error is a typed analysis failure. The Code is what clients (and the
// simulation's request executor) key their handling on.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return "analysis: " + e.Code + ": " + e.Message
}

// HTTPStatus maps the error code onto the status the API layer returns.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidURL:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeLLMTimeout:
		return http.StatusGatewayTimeout
	case CodeScrapingFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Product is the structured listing extracted from a scraped page.
type Product struct {
	Title       string  `json:"title"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	InStock     bool    `json:"in_stock"`
}

// Insights is what the (mock) language model derives from a listing.
type Insights struct {
	Sentiment      string   `json:"sentiment"` // positive, neutral, negative
	SentimentScore float64  `json:"sentiment_score"`
	KeyFeatures    []string `json:"key_features"`
	Summary        string   `json:"summary"`
}

// Result is a full analysis of one product URL.
type Result struct {
	URL          string    `json:"url"`
	Product      Product   `json:"product"`
	Insights     Insights  `json:"insights"`
	Model        string    `json:"model"`
	ScrapeTimeMs int64     `json:"scrape_time_ms"`
	ParseTimeMs  int64     `json:"parse_time_ms"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	Cached       bool      `json:"cached,omitempty"`
}

// Page is the raw output of the (mock) scraper.
type Page struct {
	URL       string
	Title     string
	Content   string
	FetchedIn time.Duration
}
