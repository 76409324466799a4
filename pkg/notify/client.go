/**
 * @description
 * This package provides a client for the push gateway that fans dispatch
 * notifications out to user devices, with an SMS fallback endpoint. The
 * dispatch core never depends on delivery succeeding; this client exists so
 * the gateway API shape lives in one place.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers.
 */
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is a client for the push gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new push gateway client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

type smsRequest struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

// ErrorResponse represents an error from the push gateway API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("push gateway error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown push gateway error"
}

// PushToUser delivers a push notification to all of a user's registered devices.
func (c *Client) PushToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	return c.post(ctx, "push", "/api/v1/push", pushRequest{
		UserID: userID.String(),
		Title:  title,
		Body:   body,
		Data:   data,
	})
}

// TextToPhone delivers an SMS through the gateway's fallback channel.
func (c *Client) TextToPhone(ctx context.Context, phone, body string) error {
	return c.post(ctx, "sms", "/api/v1/sms", smsRequest{Phone: phone, Body: body})
}

func (c *Client) post(ctx context.Context, op, path string, payload interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-push-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
		log.Printf("level=warn component=push_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
		return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
	}
	return &errResp
}
