package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RasaClient forwards messages to the Rasa REST channel.
type RasaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type rasaMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// NewRasaClient creates a client for the Rasa server at baseURL.
func NewRasaClient(baseURL string, timeout time.Duration, logger *slog.Logger) *RasaClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RasaClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Handle posts the message to /webhooks/rest/webhook.
func (c *RasaClient) Handle(ctx context.Context, senderID, text string) ([]Response, error) {
	body, err := json.Marshal(rasaMessage{Sender: senderID, Message: text})
	if err != nil {
		return nil, fmt.Errorf("encode rasa message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhooks/rest/webhook", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rasa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rasa webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rasa webhook: unexpected status %d", resp.StatusCode)
	}

	var out []Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rasa response: %w", err)
	}
	c.logger.Debug("rasa responded", "sender_id", senderID, "responses", len(out))
	return out, nil
}

// Ready checks the Rasa server root endpoint.
func (c *RasaClient) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build rasa request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rasa unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rasa not ready: status %d", resp.StatusCode)
	}
	return nil
}
