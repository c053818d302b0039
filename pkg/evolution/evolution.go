// Package evolution is a thin HTTP client for an Evolution-like WhatsApp
// gateway: send text/presence/location/buttons/template, and query
// connection state for an instance.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is a thin wrapper around the Evolution HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client targeting baseURL, authenticated with apiKey, with
// the given request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "evolution-client"),
	}
}

// SendTextResult is the provider's response to a sendText call.
type SendTextResult struct {
	MessageID string
}

// SendText posts text to number via instance, with an optional human-like
// delay in milliseconds.
func (c *Client) SendText(ctx context.Context, instance, number, text string, delayMs int) (SendTextResult, error) {
	body := map[string]any{
		"number": number,
		"text":   text,
		"delay":  delayMs,
	}
	var resp struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := c.post(ctx, "/message/sendText/"+instance, body, &resp); err != nil {
		return SendTextResult{}, err
	}
	return SendTextResult{MessageID: resp.Key.ID}, nil
}

// ConnectionState reports the instance's current connection state
// ("open" means ready to send).
func (c *Client) ConnectionState(ctx context.Context, instance string) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.get(ctx, "/instance/connectionState/"+instance, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// Presence is the typing/availability indicator sent to a number.
type Presence string

const (
	PresenceComposing   Presence = "composing"
	PresenceUnavailable Presence = "unavailable"
)

// SendPresence sends a typing/availability indicator.
func (c *Client) SendPresence(ctx context.Context, instance, number string, presence Presence, delayMs int) error {
	body := map[string]any{"number": number, "presence": string(presence), "delay": delayMs}
	return c.post(ctx, "/chat/sendPresence/"+instance, body, nil)
}

// SendLocation sends a location pin.
func (c *Client) SendLocation(ctx context.Context, instance, number string, latitude, longitude float64, name, address string) error {
	body := map[string]any{
		"number":    number,
		"latitude":  latitude,
		"longitude": longitude,
		"name":      name,
		"address":   address,
	}
	return c.post(ctx, "/message/sendLocation/"+instance, body, nil)
}

// Button is a single quick-reply option in SendButtons.
type Button struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// SendButtons sends a message with quick-reply buttons.
func (c *Client) SendButtons(ctx context.Context, instance, number, title, description string, buttons []Button) error {
	body := map[string]any{
		"number":      number,
		"title":       title,
		"description": description,
		"buttons":     buttons,
	}
	return c.post(ctx, "/message/sendButtons/"+instance, body, nil)
}

// SendTemplate sends a pre-approved WhatsApp template message.
func (c *Client) SendTemplate(ctx context.Context, instance, number, templateName string, params map[string]string) error {
	body := map[string]any{
		"number":   number,
		"template": templateName,
		"params":   params,
	}
	return c.post(ctx, "/message/sendTemplate/"+instance, body, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("evolution: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("evolution: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("evolution: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("evolution: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("evolution: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("evolution request non-2xx", "status", resp.StatusCode, "path", req.URL.Path)
		return fmt.Errorf("evolution: %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A 2xx with an unparsable body is logged but not treated as a
		// send failure — the provider accepted the request.
		c.logger.Warn("evolution response decode failed", "path", req.URL.Path, "error", err)
	}
	return nil
}

// NormalizeJID converts a free-form phone number into a WhatsApp JID:
// strip '+', spaces, and dashes, then append "@s.whatsapp.net" unless an
// "@" suffix (e.g. "@lid") is already present.
func NormalizeJID(number string) string {
	if strings.Contains(number, "@") {
		return number
	}
	cleaned := strings.NewReplacer("+", "", " ", "", "-", "").Replace(number)
	return cleaned + "@s.whatsapp.net"
}
