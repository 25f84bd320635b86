package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stokalert/stokalert/internal/models"
)

// HTTPError reports a non-2xx upstream response. The gateway unwraps it to
// keep usage accounting accurate on failed calls.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// YahooSource fetches quotes from the Yahoo Finance quote endpoint. It is the
// zero-cost, unlimited fallback and reports the richest field set, including
// moving averages and fundamentals.
type YahooSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewYahooSource creates a Yahoo Finance quote source.
func NewYahooSource(baseURL string, timeout time.Duration) *YahooSource {
	return &YahooSource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

// Name returns the provider tag.
func (s *YahooSource) Name() string { return "yahoo" }

type yahooQuote struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         float64  `json:"regularMarketPrice"`
	RegularMarketOpen          float64  `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64  `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64  `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64  `json:"regularMarketPreviousClose"`
	RegularMarketChange        float64  `json:"regularMarketChange"`
	RegularMarketChangePercent float64  `json:"regularMarketChangePercent"`
	RegularMarketVolume        float64  `json:"regularMarketVolume"`
	AverageDailyVolume3Month   *float64 `json:"averageDailyVolume3Month"`
	FiftyDayAverage            *float64 `json:"fiftyDayAverage"`
	TwoHundredDayAverage       *float64 `json:"twoHundredDayAverage"`
	FiftyTwoWeekHigh           *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            *float64 `json:"fiftyTwoWeekLow"`
	MarketCap                  *float64 `json:"marketCap"`
	TrailingPE                 *float64 `json:"trailingPE"`
}

// Quote fetches and normalizes one symbol's quote.
func (s *YahooSource) Quote(ctx context.Context, symbol string) (*models.MarketData, error) {
	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", s.baseURL, symbol)

	var response struct {
		QuoteResponse struct {
			Result []yahooQuote `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := getJSON(ctx, s.httpClient, url, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch yahoo quote: %w", err)
	}

	if len(response.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}
	q := response.QuoteResponse.Result[0]
	if q.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("malformed quote for %s: missing price", symbol)
	}

	return &models.MarketData{
		Symbol: models.NormalizeSymbol(symbol),
		Data: models.Quote{
			Price:         q.RegularMarketPrice,
			Open:          q.RegularMarketOpen,
			High:          q.RegularMarketDayHigh,
			Low:           q.RegularMarketDayLow,
			Close:         q.RegularMarketPrice,
			Volume:        q.RegularMarketVolume,
			PreviousClose: q.RegularMarketPreviousClose,
			Change:        q.RegularMarketChange,
			ChangePercent: q.RegularMarketChangePercent,
			AvgVolume:     q.AverageDailyVolume3Month,
			SMA50:         q.FiftyDayAverage,
			SMA200:        q.TwoHundredDayAverage,
			Week52High:    q.FiftyTwoWeekHigh,
			Week52Low:     q.FiftyTwoWeekLow,
			MarketCap:     q.MarketCap,
			PERatio:       q.TrailingPE,
		},
		LastUpdated: time.Now(),
		Source:      s.Name(),
	}, nil
}

// FinnhubSource fetches quotes from the Finnhub quote endpoint. Finnhub's
// quote payload carries no volume or indicator fields; those stay absent in
// the normalized shape.
type FinnhubSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFinnhubSource creates a Finnhub quote source.
func NewFinnhubSource(baseURL, apiKey string, timeout time.Duration) *FinnhubSource {
	return &FinnhubSource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
	}
}

// Name returns the provider tag.
func (s *FinnhubSource) Name() string { return "finnhub" }

// Quote fetches and normalizes one symbol's quote.
func (s *FinnhubSource) Quote(ctx context.Context, symbol string) (*models.MarketData, error) {
	url := fmt.Sprintf("%s/quote?symbol=%s", s.baseURL, symbol)

	var q struct {
		Current       float64 `json:"c"`
		Change        float64 `json:"d"`
		ChangePercent float64 `json:"dp"`
		High          float64 `json:"h"`
		Low           float64 `json:"l"`
		Open          float64 `json:"o"`
		PreviousClose float64 `json:"pc"`
	}
	headers := map[string]string{"X-Finnhub-Token": s.apiKey}
	if err := getJSON(ctx, s.httpClient, url, headers, &q); err != nil {
		return nil, fmt.Errorf("failed to fetch finnhub quote: %w", err)
	}

	// Finnhub returns an all-zero payload for unknown symbols.
	if q.Current <= 0 {
		return nil, fmt.Errorf("malformed quote for %s: missing price", symbol)
	}

	return &models.MarketData{
		Symbol: models.NormalizeSymbol(symbol),
		Data: models.Quote{
			Price:         q.Current,
			Open:          q.Open,
			High:          q.High,
			Low:           q.Low,
			Close:         q.Current,
			PreviousClose: q.PreviousClose,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
		},
		LastUpdated: time.Now(),
		Source:      s.Name(),
	}, nil
}

// AlphaVantageSource fetches quotes from the Alpha Vantage GLOBAL_QUOTE
// endpoint, whose payload reports every numeric field as a string.
type AlphaVantageSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAlphaVantageSource creates an Alpha Vantage quote source.
func NewAlphaVantageSource(baseURL, apiKey string, timeout time.Duration) *AlphaVantageSource {
	return &AlphaVantageSource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
	}
}

// Name returns the provider tag.
func (s *AlphaVantageSource) Name() string { return "alphavantage" }

// Quote fetches and normalizes one symbol's quote.
func (s *AlphaVantageSource) Quote(ctx context.Context, symbol string) (*models.MarketData, error) {
	url := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", s.baseURL, symbol, s.apiKey)

	var response struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := getJSON(ctx, s.httpClient, url, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch alpha vantage quote: %w", err)
	}
	if len(response.GlobalQuote) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}

	num := func(key string) float64 {
		v, _ := strconv.ParseFloat(strings.TrimSuffix(response.GlobalQuote[key], "%"), 64)
		return v
	}

	price := num("05. price")
	if price <= 0 {
		return nil, fmt.Errorf("malformed quote for %s: missing price", symbol)
	}

	return &models.MarketData{
		Symbol: models.NormalizeSymbol(symbol),
		Data: models.Quote{
			Price:         price,
			Open:          num("02. open"),
			High:          num("03. high"),
			Low:           num("04. low"),
			Close:         price,
			Volume:        num("06. volume"),
			PreviousClose: num("08. previous close"),
			Change:        num("09. change"),
			ChangePercent: num("10. change percent"),
		},
		LastUpdated: time.Now(),
		Source:      s.Name(),
	}, nil
}
