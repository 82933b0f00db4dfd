package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mercado/internal/config"
	"mercado/internal/constants"
)

// Client signals the gateway from another service. Delivery is one-way
// and best-effort: callers log a failure and move on.
type Client interface {
	NotifyReport(ctx context.Context, signal ReportSignal) error
}

type HTTPClient struct {
	client *http.Client
	url    string
}

func NewHTTPClient(cfg config.NotifierConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(cfg.GatewayURL, "/") + "/api/reportes",
	}
}

func (c *HTTPClient) NotifyReport(ctx context.Context, signal ReportSignal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to encode report signal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return fmt.Errorf("gateway returned status: %d", resp.StatusCode)
	}
	return nil
}

type KafkaPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaClient writes the signal to the topic the gateway consumes.
type KafkaClient struct {
	producer KafkaPublisher
	topic    string
}

func NewKafkaClient(producer KafkaPublisher, topic string) *KafkaClient {
	return &KafkaClient{producer: producer, topic: topic}
}

func (c *KafkaClient) NotifyReport(ctx context.Context, signal ReportSignal) error {
	value, err := EncodeEvent(NewReportEvent(signal))
	if err != nil {
		return fmt.Errorf("failed to encode report signal: %w", err)
	}
	return c.producer.Publish(ctx, c.topic, []byte(strconv.FormatInt(signal.ID, 10)), value)
}

type NopClient struct{}

func (NopClient) NotifyReport(context.Context, ReportSignal) error { return nil }
