package announce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultTwitterAPIURL is the X API v2 base URL.
const DefaultTwitterAPIURL = "https://api.twitter.com"

// TwitterCredentials are the user-context OAuth 1.0a keys.
type TwitterCredentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Complete reports whether every credential is set.
func (c TwitterCredentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// TwitterPublisher posts via POST /2/tweets signed with OAuth 1.0a.
type TwitterPublisher struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTwitterPublisher creates a publisher for the given API base URL.
func NewTwitterPublisher(baseURL string, creds TwitterCredentials, logger *zap.Logger) (*TwitterPublisher, error) {
	if !creds.Complete() {
		return nil, errors.New("twitter credentials incomplete")
	}

	if baseURL == "" {
		baseURL = DefaultTwitterAPIURL
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	return &TwitterPublisher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: config.Client(oauth1.NoContext, token),
		logger:     logger,
	}, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// Publish posts text as a new tweet.
func (p *TwitterPublisher) Publish(ctx context.Context, text string) (postID string, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		PublishTotal.WithLabelValues("twitter", status).Inc()
	}()

	body, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed tweetResponse
	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if parsed.Data.ID == "" {
		return "", fmt.Errorf("tweet response missing id: %s", parsed.Detail)
	}

	p.logger.Info("tweet-posted", zap.String("tweet-id", parsed.Data.ID))

	return parsed.Data.ID, nil
}
