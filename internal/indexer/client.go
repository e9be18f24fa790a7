// Package indexer queries the hyperindex GraphQL endpoint for token prices
// and pool descriptors.
package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultURL is the public hyperindex endpoint for the Levr indexer.
const DefaultURL = "https://indexer.hyperindex.xyz/2b6b55b/v1/graphql"

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("not found in indexer")

// Client is an HTTP client for the GraphQL indexer.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new indexer client.
func NewClient(url string, logger *zap.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query posts a GraphQL query and decodes its data object into out.
func (c *Client) Query(ctx context.Context, query string, out interface{}) (err error) {
	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "molt-treasury/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	QueryDuration.Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope graphQLResponse
	err = json.Unmarshal(respBody, &envelope)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	err = json.Unmarshal(envelope.Data, out)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("unmarshal data: %w", err)
	}

	QueriesTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("indexer-query-complete", zap.Duration("duration", time.Since(start)))

	return nil
}

// addressFilter renders the case-insensitive substring match the indexer expects.
func addressFilter(token common.Address) string {
	return fmt.Sprintf(`{_ilike: "%%%s%%"}`, strings.TrimPrefix(token.Hex(), "0x"))
}

type tokenPriceData struct {
	Token []struct {
		PriceUSD *decimal.Decimal `json:"priceUsd"`
	} `json:"Token"`
}

// TokenPriceUSD returns the indexer's USD price for token.
func (c *Client) TokenPriceUSD(ctx context.Context, token common.Address) (price decimal.Decimal, err error) {
	query := fmt.Sprintf(`{ Token(where: {address: %s}) { priceUsd } }`, addressFilter(token))

	var data tokenPriceData
	err = c.Query(ctx, query, &data)
	if err != nil {
		return decimal.Zero, err
	}

	if len(data.Token) == 0 || data.Token[0].PriceUSD == nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w", token.Hex(), ErrNotFound)
	}

	return *data.Token[0].PriceUSD, nil
}

// PoolRow is a pool descriptor as reported by the indexer. Numeric
// fields may arrive quoted or bare.
type PoolRow struct {
	Currency0   string          `json:"currency0"`
	Currency1   string          `json:"currency1"`
	Fee         decimal.Decimal `json:"fee"`
	TickSpacing decimal.Decimal `json:"tickSpacing"`
	Hooks       string          `json:"hooks"`
}

type poolData struct {
	Pool []PoolRow `json:"Pool"`
}

// PoolForToken returns the first pool with token on either side.
func (c *Client) PoolForToken(ctx context.Context, token common.Address) (row *PoolRow, err error) {
	filter := addressFilter(token)
	query := fmt.Sprintf(
		`{ Pool(where: {_or: [{currency0: %s}, {currency1: %s}]}, limit: 1) { currency0 currency1 fee tickSpacing hooks } }`,
		filter, filter)

	var data poolData
	err = c.Query(ctx, query, &data)
	if err != nil {
		return nil, err
	}

	if len(data.Pool) == 0 {
		return nil, fmt.Errorf("pool for %s: %w", token.Hex(), ErrNotFound)
	}

	return &data.Pool[0], nil
}
