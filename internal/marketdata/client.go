// Package marketdata fetches OHLCV series for the engine. Ingestion is
// an external concern; the engine depends only on the Source
// interface.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantvn/signals/models"
)

// Source supplies the candle series for one symbol, oldest first.
type Source interface {
	Candles(ctx context.Context, symbol string) ([]models.Candle, error)
}

// ClientConfig configures the HTTP market data client.
type ClientConfig struct {
	APIKey      string
	Interval    string
	OutputSize  int
	Timeout     time.Duration
	MaxElapsed  time.Duration
	RequestsPer int // requests per second against the vendor API
}

// Client fetches time series from the Twelve Data API with rate
// limiting and exponential-backoff retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a rate-limited API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Interval == "" {
		cfg.Interval = "5min"
	}
	if cfg.OutputSize <= 0 {
		cfg.OutputSize = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.RequestsPer <= 0 {
		cfg.RequestsPer = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), cfg.RequestsPer),
		cfg:        cfg,
		logger:     log.With().Str("component", "marketdata").Logger(),
	}
}

type timeSeriesResponse struct {
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   float64 `json:"volume,string,omitempty"`
	} `json:"values"`
	Status string `json:"status"`
}

// Candles fetches the series for a symbol, sorted oldest first.
func (c *Client) Candles(ctx context.Context, symbol string) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf(
		"https://api.twelvedata.com/time_series?symbol=%s&interval=%s&outputsize=%d&apikey=%s",
		symbol, c.cfg.Interval, c.cfg.OutputSize, c.cfg.APIKey,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.cfg.MaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if strings.Contains(string(body), `"status":"error"`) {
		c.logger.Error().Str("symbol", symbol).Str("response", string(body)).Msg("vendor API error")
		return nil, fmt.Errorf("vendor API error for %s", symbol)
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty data returned for %s", symbol)
	}

	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		candles = append(candles, models.Candle{
			Datetime: v.Datetime,
			Open:     v.Open,
			High:     v.High,
			Low:      v.Low,
			Close:    v.Close,
			Volume:   v.Volume,
		})
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(candles)).Msg("fetched candles")
	return candles, nil
}
