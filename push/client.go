package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrDeviceNotRegistered marks a permanent per-token failure: the device
// uninstalled the app or rotated its token. The caller invalidates the token
// and must not retry it.
var ErrDeviceNotRegistered = errors.New("push: device not registered")

// Sender is the delivery function's view of the push gateway.
type Sender interface {
	Send(ctx context.Context, msg Message) (Ticket, error)
}

// Client talks to an Expo-compatible push gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time
}

func NewClient() *Client {
	baseURL := strings.TrimSpace(os.Getenv("PUSH_GATEWAY_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://exp.host/--/api/v2/push"
	}
	token := strings.TrimSpace(os.Getenv("PUSH_GATEWAY_TOKEN"))

	rateLimitPerMin := int64(600)
	if v := strings.TrimSpace(os.Getenv("PUSH_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}
}

// Send delivers one message to one token. Gateway-reported permanent token
// failures come back as ErrDeviceNotRegistered; everything else (HTTP errors,
// 5xx, timeouts) is transient from the caller's point of view.
func (c *Client) Send(ctx context.Context, msg Message) (Ticket, error) {
	<-c.limiter

	payload, err := json.Marshal([]Message{msg})
	if err != nil {
		return Ticket{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return Ticket{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Ticket{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ticket{}, fmt.Errorf("push gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Ticket{}, fmt.Errorf("push gateway bad response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return Ticket{}, fmt.Errorf("push gateway empty response: %s", strings.TrimSpace(string(body)))
	}

	t := parsed.Data[0]
	if t.Status == "error" {
		if t.Details != nil && isPermanentTokenError(t.Details.Error) {
			return Ticket{}, fmt.Errorf("%w: %s", ErrDeviceNotRegistered, t.Message)
		}
		return Ticket{}, fmt.Errorf("push gateway ticket error: %s", t.Message)
	}

	return Ticket{ID: t.ID, Status: t.Status}, nil
}

func isPermanentTokenError(code string) bool {
	switch code {
	case "DeviceNotRegistered", "InvalidCredentials":
		return true
	}
	return false
}
