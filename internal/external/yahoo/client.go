package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/pkg/httputil"
	"github.com/goahead/predtracker/pkg/redis"
)

// Client 일별 종가 조회 클라이언트 (chart API)
// ⭐ SSOT: 시세 제공자 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	suffixes   []string
	loc        *time.Location
	breaker    *gobreaker.CircuitBreaker
	cache      *redis.Cache
	log        zerolog.Logger
}

// Config 클라이언트 설정
type Config struct {
	BaseURL  string
	Suffixes []string // alternate exchange suffixes tried in order, e.g. [".NS", ".BO"]
	Location *time.Location
}

// NewClient creates a market-data client. cache may be nil.
func NewClient(httpClient *httputil.Client, cfg Config, cache *redis.Cache, log zerolog.Logger) *Client {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		suffixes:   cfg.Suffixes,
		loc:        loc,
		cache:      cache,
		log:        log.With().Str("component", "external.yahoo").Logger(),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 가격 없음은 제공자 장애가 아님
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, contracts.ErrPriceUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// Tickers returns the ticker formats tried for symbol.
// A symbol that already carries an exchange suffix is used as is.
func Tickers(symbol string, suffixes []string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") || len(suffixes) == 0 {
		return []string{symbol}
	}
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		out = append(out, symbol+s)
	}
	return out
}

// ClosingPrice returns the close for symbol on the session date, trying each ticker format.
func (c *Client) ClosingPrice(ctx context.Context, symbol string, session time.Time) (float64, error) {
	day := session.Format(contracts.DateLayout)
	cacheKey := redis.ClosePriceKey(symbol, day)

	if c.cache != nil {
		var cached float64
		found, err := c.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("close cache lookup failed")
		}
		if found && cached > 0 {
			return cached, nil
		}
	}

	var lastErr error
	unavailable := true
	for _, ticker := range Tickers(symbol, c.suffixes) {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchClose(ctx, ticker, session)
		})
		if err == nil {
			price := res.(float64)
			if c.cache != nil {
				if err := c.cache.Set(ctx, cacheKey, price, redis.TTLDaily); err != nil {
					c.log.Debug().Err(err).Str("symbol", symbol).Msg("close cache store failed")
				}
			}
			c.log.Debug().Str("symbol", symbol).Str("ticker", ticker).Str("session", day).Float64("close", price).Msg("closing price fetched")
			return price, nil
		}

		if !errors.Is(err, contracts.ErrPriceUnavailable) {
			unavailable = false
		}
		lastErr = err
		c.log.Debug().Err(err).Str("ticker", ticker).Msg("ticker lookup failed")

		if ctx.Err() != nil {
			break
		}
	}

	if unavailable {
		return 0, fmt.Errorf("%w: %s on %s", contracts.ErrPriceUnavailable, symbol, day)
	}
	return 0, fmt.Errorf("%w: %s on %s: %v", contracts.ErrFetchFailed, symbol, day, lastErr)
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// fetchClose reads the daily bar for the session date
func (c *Client) fetchClose(ctx context.Context, ticker string, session time.Time) (float64, error) {
	from := time.Date(session.Year(), session.Month(), session.Day(), 0, 0, 0, 0, c.loc)
	to := from.AddDate(0, 0, 1)

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", from.Unix()))
	q.Set("period2", fmt.Sprintf("%d", to.Unix()))
	q.Set("interval", "1d")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	var body chartResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &body); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return 0, fmt.Errorf("%w: %s not listed", contracts.ErrPriceUnavailable, ticker)
		}
		return 0, err
	}

	if body.Chart.Error != nil {
		return 0, fmt.Errorf("%w: %s: %s", contracts.ErrPriceUnavailable, ticker, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, fmt.Errorf("%w: %s: empty chart", contracts.ErrPriceUnavailable, ticker)
	}

	result := body.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		bar := time.Unix(ts, 0).In(c.loc)
		if bar.Year() != session.Year() || bar.YearDay() != session.YearDay() {
			continue
		}
		price := *closes[i]
		if price <= 0 || math.IsNaN(price) {
			break
		}
		return price, nil
	}
	return 0, fmt.Errorf("%w: %s: no bar for %s", contracts.ErrPriceUnavailable, ticker, session.Format(contracts.DateLayout))
}

// BreakerState returns the circuit breaker state name
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
