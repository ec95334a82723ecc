package store

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

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/models"
	"github.com/kisansathi/gateway/pkg/metrics"
)

// Sender delivers a pending record to the remote endpoint. Delivery is
// at-least-once: the coordinator retries failed records on the next drain, so
// the remote side must tolerate duplicates.
type Sender interface {
	Send(ctx context.Context, record models.PendingRecord) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, record models.PendingRecord) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, record models.PendingRecord) error {
	return f(ctx, record)
}

// HTTPSender posts pending records as JSON to a fixed endpoint.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPSender constructs an HTTPSender with a sane default timeout.
func NewHTTPSender(endpoint string) (*HTTPSender, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("store: sync endpoint is required")
	}
	return &HTTPSender{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Send implements Sender by POSTing the record envelope as JSON.
func (s *HTTPSender) Send(ctx context.Context, record models.PendingRecord) error {
	envelope := map[string]any{
		"id":         record.ID,
		"category":   record.Category,
		"payload":    json.RawMessage(record.Payload),
		"created_at": record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SyncStats summarises one drain of the pending queue.
type SyncStats struct {
	Attempted int
	Synced    int
	Failed    int
}

// SyncPendingData fetches every unsynced pending record and attempts a remote
// send for each, marking the record synced on success. A failure for one
// record is logged and does not stop the rest of the batch; failed records
// stay unsynced and are retried on the next invocation. The joined per-record
// errors are returned alongside the stats.
func (s *Store) SyncPendingData(ctx context.Context) (SyncStats, error) {
	stats := SyncStats{}

	if s.sender == nil {
		return stats, errors.New("store: no sender configured")
	}

	db, err := s.handle(ctx)
	if err != nil {
		return stats, err
	}

	var pending []models.PendingRecord
	if err := db.Where("synced = ?", false).Find(&pending).Error; err != nil {
		return stats, fmt.Errorf("store: load unsynced records: %w", err)
	}

	var errs error
	for _, record := range pending {
		stats.Attempted++

		if err := s.sender.Send(ctx, record); err != nil {
			stats.Failed++
			metrics.SyncAttempts.WithLabelValues(string(record.Category), "failure").Inc()
			s.log.Warn("sync failed for record",
				zap.String("id", record.ID),
				zap.String("category", string(record.Category)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("record %s: %w", record.ID, err))
			continue
		}

		if err := s.MarkSynced(ctx, record.ID); err != nil {
			stats.Failed++
			metrics.SyncAttempts.WithLabelValues(string(record.Category), "failure").Inc()
			s.log.Warn("record delivered but could not be marked synced",
				zap.String("id", record.ID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}

		stats.Synced++
		metrics.SyncAttempts.WithLabelValues(string(record.Category), "success").Inc()
	}

	return stats, errs
}

// PruneSyncedRecords deletes synced records in the given category older than
// the retention window. Only crop-analysis history is pruned in practice;
// other categories are kept as history.
func (s *Store) PruneSyncedRecords(ctx context.Context, category models.Category, olderThan time.Duration) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	result := db.Where("category = ? AND synced = ? AND created_at < ?", category, true, cutoff).
		Delete(&models.PendingRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: prune synced records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
