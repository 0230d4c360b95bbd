// Package whatsapp is a thin client for the third-party WhatsApp messaging
// gateway used to deliver audit reports.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://whats-api.dxing.in/api/send"

// Client sends text messages through the gateway. One call per delivery;
// retry policy, if any, belongs to the caller.
type Client struct {
	BaseURL     string
	InstanceID  string
	AccessToken string
	HTTPClient  *http.Client
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, instanceID, accessToken string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}
	return &Client{
		BaseURL:     u,
		InstanceID:  strings.TrimSpace(instanceID),
		AccessToken: strings.TrimSpace(accessToken),
	}
}

// Configured reports whether provider credentials are present.
func (c *Client) Configured() bool {
	return c.InstanceID != "" && c.AccessToken != ""
}

type sendRequest struct {
	Number      string `json:"number"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	InstanceID  string `json:"instance_id"`
	AccessToken string `json:"access_token"`
}

type sendResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// SendText delivers one text message and returns the provider's message
// identifier (may be empty). A provider-reported error status or HTTP >= 400
// is returned as an error.
func (c *Client) SendText(ctx context.Context, number, message string) (string, error) {
	payload := sendRequest{
		Number:      number,
		Type:        "text",
		Message:     message,
		InstanceID:  c.InstanceID,
		AccessToken: c.AccessToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed sendResponse
	// The gateway sometimes returns plain text on errors; fold that into the
	// error message rather than failing the decode.
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		parsed.Message = strings.TrimSpace(string(respBody))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, providerDetail(parsed))
	}
	if parsed.Status == "error" {
		return "", fmt.Errorf("provider error: %s", providerDetail(parsed))
	}

	return parsed.MessageID, nil
}

func providerDetail(resp sendResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	return "no detail provided"
}
