package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs membership churn events to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Event       string   `json:"event"`
	SegmentName string   `json:"segment_name"`
	AddedIDs    []string `json:"added_ids"`
	RemovedIDs  []string `json:"removed_ids"`
	Timestamp   string   `json:"timestamp"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	payload := webhookPayload{
		Event:       "segment.membership_changed",
		SegmentName: segmentName,
		AddedIDs:    addedIDs,
		RemovedIDs:  removedIDs,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Info("segment webhook delivered",
		slog.String("segment", segmentName),
		slog.Int("added", len(addedIDs)),
		slog.Int("removed", len(removedIDs)),
	)

	return nil
}
