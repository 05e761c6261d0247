// Package exchange provides concrete adapters onto a Binance-style USDT-M
// futures REST/WebSocket API: a MarketDataSource/OrderSink pair for the
// core pipeline, and a streaming price watcher adapted from the teacher's
// ConnectionManager reconnect/backoff/health-monitor pattern.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"haka-futures-engine/market"
)

// RESTClient is a MarketDataSource and OrderSink backed by a Binance-style
// USDT-M futures REST API.
type RESTClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// NewRESTClient constructs a RESTClient with its own pooled http.Client
// (100 idle connections, 10 per host, 90s idle timeout).
func NewRESTClient(baseURL, apiKey, apiSecret string) *RESTClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &RESTClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Transport: transport},
	}
}

var timeframeToInterval = map[market.Timeframe]string{
	market.TF5m:  "5m",
	market.TF15m: "15m",
	market.TF1h:  "1h",
}

type klineRow [12]interface{}

// GetKlines implements market.MarketDataSource.
func (c *RESTClient) GetKlines(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	interval, ok := timeframeToInterval[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %s", tf)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows []klineRow
	if err := c.getJSON(ctx, "/fapi/v1/klines", q, &rows); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKlineRow(row klineRow) (market.Candle, error) {
	openTimeMs, ok := row[0].(float64)
	if !ok {
		return market.Candle{}, fmt.Errorf("malformed kline open_time")
	}
	closeTimeMs, ok := row[6].(float64)
	if !ok {
		return market.Candle{}, fmt.Errorf("malformed kline close_time")
	}

	open, err1 := parseFloatField(row[1])
	high, err2 := parseFloatField(row[2])
	low, err3 := parseFloatField(row[3])
	close, err4 := parseFloatField(row[4])
	volume, err5 := parseFloatField(row[5])
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return market.Candle{}, fmt.Errorf("malformed kline field: %w", err)
		}
	}

	return market.Candle{
		OpenTime:  time.UnixMilli(int64(openTimeMs)),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		CloseTime: time.UnixMilli(int64(closeTimeMs)),
	}, nil
}

func parseFloatField(v interface{}) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected string field")
	}
	return strconv.ParseFloat(s, 64)
}

// GetFundingRate implements market.MarketDataSource.
func (c *RESTClient) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var resp struct {
		LastFundingRate string `json:"lastFundingRate"`
	}
	if err := c.getJSON(ctx, "/fapi/v1/premiumIndex", q, &resp); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp.LastFundingRate, 64)
}

// GetOpenInterest implements market.MarketDataSource.
func (c *RESTClient) GetOpenInterest(ctx context.Context, symbol string) (market.OpenInterest, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var current struct {
		OpenInterest string `json:"openInterest"`
	}
	if err := c.getJSON(ctx, "/fapi/v1/openInterest", q, &current); err != nil {
		return market.OpenInterest{}, err
	}
	currentOI, err := strconv.ParseFloat(current.OpenInterest, 64)
	if err != nil {
		return market.OpenInterest{}, err
	}

	histQ := url.Values{}
	histQ.Set("symbol", symbol)
	histQ.Set("period", "1h")
	histQ.Set("limit", "24")

	var history []struct {
		SumOpenInterest string `json:"sumOpenInterest"`
	}
	if err := c.getJSON(ctx, "/futures/data/openInterestHist", histQ, &history); err != nil || len(history) == 0 {
		return market.OpenInterest{Current: currentOI}, nil
	}
	ago24h, err := strconv.ParseFloat(history[0].SumOpenInterest, 64)
	if err != nil {
		return market.OpenInterest{Current: currentOI}, nil
	}

	return market.OpenInterest{Current: currentOI, Ago24h: ago24h}, nil
}

// GetInstitutionalNetflow implements market.MarketDataSource. It proxies
// institutional netflow with the taker buy/sell ratio of the most recent
// 1h row in the window, reported as (ratio-1)*100: a signed percentage, not
// a volume, used as an on-exchange substitute for true wallet-flow data.
func (c *RESTClient) GetInstitutionalNetflow(ctx context.Context, symbol string, window time.Duration) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("period", "1h")
	q.Set("limit", strconv.Itoa(int(math.Ceil(window.Hours()))))

	var rows []struct {
		BuySellRatio string `json:"buySellRatio"`
	}
	if err := c.getJSON(ctx, "/futures/data/takerlongshortRatio", q, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ratio, err := strconv.ParseFloat(rows[len(rows)-1].BuySellRatio, 64)
	if err != nil {
		return 0, err
	}
	// ratio > 1 means buyers dominate: report as a signed flow around zero.
	return (ratio - 1) * 100, nil
}

func (c *RESTClient) getJSON(ctx context.Context, path string, q url.Values, dest interface{}) error {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429) on %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d on %s: %s", resp.StatusCode, path, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

// signedGetJSON performs an HMAC-signed GET against a user-data endpoint
// (account balance, position risk, income history), using the same signing
// scheme as order submission.
func (c *RESTClient) signedGetJSON(ctx context.Context, path string, q url.Values, dest interface{}) error {
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("signature", c.sign(q.Encode()))

	reqURL := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build signed request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("signed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429) on %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d on %s: %s", resp.StatusCode, path, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
