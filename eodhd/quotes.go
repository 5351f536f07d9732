package eodhd

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// maxBatch is the number of tickers the real-time endpoint accepts per call.
const maxBatch = 15

// Quotes returns the last price of each of 'tickers' (US tickers, without
// exchange suffix). Tickers that are not quoted are absent of the result.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	quotes := make(map[string]decimal.Decimal)
	for len(tickers) > 0 {
		n := min(len(tickers), maxBatch)
		if err := c.quotes(ctx, tickers[:n], quotes); err != nil {
			return quotes, err
		}
		tickers = tickers[n:]
	}
	return quotes, nil
}

func (c *Client) quotes(ctx context.Context, tickers []string, quotes map[string]decimal.Decimal) error {
	codes := make([]string, len(tickers))
	requested := make(map[string]string, len(tickers))
	for i, t := range tickers {
		codes[i] = usCode(t)
		requested[codes[i]] = t
	}
	addr := fmt.Sprintf("%s/real-time/%s?api_token=%s&fmt=json", c.baseURL, url.PathEscape(codes[0]), url.QueryEscape(c.apiKey))
	if len(codes) > 1 {
		addr += "&s=" + url.QueryEscape(strings.Join(codes[1:], ","))
	}

	var jobj any
	if err := jwget(ctx, c.http, addr, &jobj); err != nil {
		return fmt.Errorf("eodhd quotes %v: %w", tickers, err)
	}
	// a single ticker is answered with an object, several with an array.
	if _, ok := jobj.(map[string]any); ok {
		jobj = []any{jobj}
	}

	items, _ := jobj.([]any)
	for _, item := range items {
		jcode, err := jsonpath.Get("$.code", item)
		if err != nil {
			continue
		}
		ticker, ok := requested[fmt.Sprint(jcode)]
		if !ok {
			continue
		}
		// unknown tickers come back with "NA" prices.
		jclose, err := jsonpath.Get("$.close", item)
		if err != nil {
			continue
		}
		price, ok := jclose.(float64)
		if !ok || price <= 0 {
			continue
		}
		quotes[ticker] = decimal.NewFromFloat(price)
	}
	return nil
}

// usCode returns the EODHD code of a US ticker: BRK.B is BRK-B.US.
func usCode(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(ticker), ".", "-") + ".US"
}
