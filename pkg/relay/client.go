package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"relayq/pkg/relay/types"

	"github.com/sirupsen/logrus"
)

// ErrRejected marks a permanent rejection (4xx) from the relay server.
// The queue treats it like any other send failure; it still counts
// against the retry budget.
type ErrRejected struct {
	StatusCode int
	Reason     string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("relay rejected message (status %d): %s", e.StatusCode, e.Reason)
}

// RelayClient talks to the relay server's HTTP API.
type RelayClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	logger    *logrus.Logger
}

func NewClient(baseURL, authToken string, httpClient *http.Client) types.Client {
	return NewClientWithLogger(baseURL, authToken, httpClient, nil)
}

func NewClientWithLogger(baseURL, authToken string, httpClient *http.Client, logger *logrus.Logger) types.Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &RelayClient{
		baseURL:   baseURL,
		authToken: authToken,
		client:    httpClient,
		logger:    logger,
	}
}

func (c *RelayClient) SendMessage(ctx context.Context, req *types.SendMessageRequest) (*types.SendMessageResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/messages", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"message_id": req.ID,
	}).Debug("Sending relay message request")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// fallthrough to decode below
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ErrRejected{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
	default:
		return nil, fmt.Errorf("relay server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sendResp types.SendMessageResponse
	if err := json.Unmarshal(body, &sendResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if sendResp.ID == "" {
		sendResp.ID = req.ID
	}

	return &sendResp, nil
}

// HealthCheck probes the relay server; a nil error means reachable.
func (c *RelayClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("relay health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health check returned status %d", resp.StatusCode)
	}
	return nil
}
