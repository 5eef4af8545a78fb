package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultWebhookTimeout = 30 * time.Second
	maxWebhookErrorBody   = 1 << 16
)

type event struct {
	Upsert     bool       `json:"upsert"`
	Namespace  string     `json:"namespace"`
	EntityType string     `json:"entity_type"`
	Attributes Attributes `json:"attributes"`
}

func newEvent(inst Instance, upsert bool) event {
	return event{
		Upsert:     upsert,
		Namespace:  inst.Namespace,
		EntityType: inst.EntityType,
		Attributes: inst.Attributes,
	}
}

// JSONLines writes one JSON object per emitted instance.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (s *JSONLines) OnSubscription(_ context.Context, inst Instance, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(newEvent(inst, upsert))
}

// Webhook POSTs each emitted instance as JSON to URL.
type Webhook struct {
	URL  string
	HTTP *http.Client
}

func NewWebhook(rawURL string) (*Webhook, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("webhook url is required")
	}
	return &Webhook{
		URL:  rawURL,
		HTTP: &http.Client{Timeout: defaultWebhookTimeout},
	}, nil
}

func (w *Webhook) OnSubscription(ctx context.Context, inst Instance, upsert bool) error {
	body, err := json.Marshal(newEvent(inst, upsert))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookErrorBody))
		return fmt.Errorf("webhook %s: %s: %s", w.URL, resp.Status, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
