package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/payrelay/payrelay-backend/pkg/config"
)

// ErrTokenNotRegistered marks a registration token FCM no longer accepts.
// Callers deactivate the owning device instead of retrying.
var ErrTokenNotRegistered = errors.New("fcm token not registered")

// Message is a single-token push request against the legacy HTTP endpoint.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender is the outbound push surface used by the dispatcher.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client talks to the FCM legacy HTTP API.
type Client struct {
	endpoint  string
	serverKey string
	http      *http.Client
}

// New builds an FCM client from configuration.
func New(cfg config.FCMConfig) (*Client, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, errors.New("fcm server key is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("fcm endpoint is required")
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		serverKey: cfg.ServerKey,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type sendRequest struct {
	To           string            `json:"to"`
	Notification sendNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type sendNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Success int          `json:"success"`
	Failure int          `json:"failure"`
	Results []sendResult `json:"results"`
}

type sendResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send pushes a single message. A NotRegistered/InvalidRegistration result
// maps to ErrTokenNotRegistered.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Token) == "" {
		return errors.New("device token is required")
	}

	body, err := json.Marshal(sendRequest{
		To: msg.Token,
		Notification: sendNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal fcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read fcm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm send: unexpected status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode fcm response: %w", err)
	}

	if parsed.Failure == 0 {
		return nil
	}
	for _, result := range parsed.Results {
		switch result.Error {
		case "":
			continue
		case "NotRegistered", "InvalidRegistration":
			return ErrTokenNotRegistered
		default:
			return fmt.Errorf("fcm send: %s", result.Error)
		}
	}
	return errors.New("fcm send: unknown failure")
}
