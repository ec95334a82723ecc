// Package store implements the durable offline data layer: a queue of
// pending records created while the client was offline and an expirable
// response cache, both persisted in the embedded database.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kisansathi/gateway/internal/database"
	"github.com/kisansathi/gateway/internal/models"
	"github.com/kisansathi/gateway/pkg/logger"
	"github.com/kisansathi/gateway/pkg/metrics"
)

// DefaultCacheTTL applies when CacheResponse is called with a zero ttl.
const DefaultCacheTTL = 24 * time.Hour

const idSuffixLen = 9

var idAlphabet = []byte("abcdefghijklmnopqrstuvwxyz0123456789")

// ErrInvalidCategory is returned when a write names an unknown category.
var ErrInvalidCategory = errors.New("store: invalid category")

// Store owns the persisted offline queue and response cache. The database
// handle is opened lazily behind a once-guard so that concurrent first
// callers converge on a single open/migration sequence.
type Store struct {
	cfg    database.Config
	sender Sender
	now    func() time.Time
	newID  func(models.Category, time.Time) string
	log    *zap.Logger

	initOnce sync.Once
	db       *gorm.DB
	initErr  error
}

// Option customises the Store.
type Option func(*Store)

// WithNow overrides the clock used for timestamps and expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSender sets the remote delivery mechanism used by SyncPendingData.
func WithSender(sender Sender) Option {
	return func(s *Store) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// New constructs a Store that opens the database on first use.
func New(cfg database.Config, opts ...Option) *Store {
	s := &Store{
		cfg:   cfg,
		now:   time.Now,
		newID: newRecordID,
		log:   logger.WithModule("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithDB constructs a Store over an already-open handle. The schema is
// assumed to be migrated; bootstrap and tests use this path.
func NewWithDB(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}

	s := New(database.Config{}, opts...)
	s.initOnce.Do(func() { s.db = db })
	return s, nil
}

// Init eagerly opens the database. Safe to call repeatedly and concurrently;
// every caller observes the outcome of the single open attempt.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*gorm.DB, error) {
	s.initOnce.Do(func() {
		db, err := database.OpenAndMigrate(s.cfg)
		if err != nil {
			s.initErr = fmt.Errorf("store: open database: %w", err)
			return
		}
		s.db = db
	})

	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.db.WithContext(ctx), nil
}

// SaveOfflineData persists a new pending record with synced=false and returns
// its id. Records are insert-only: an id collision surfaces as an error.
func (s *Store) SaveOfflineData(ctx context.Context, category models.Category, payload any) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	db, err := s.handle(ctx)
	if err != nil {
		return "", err
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("store: encode payload: %w", err)
	}

	now := s.now()
	record := models.PendingRecord{
		ID:        s.newID(category, now),
		Category:  category,
		Payload:   body,
		CreatedAt: now,
		Synced:    false,
	}

	if err := db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("store: save offline data: %w", err)
	}

	return record.ID, nil
}

// GetOfflineData returns all pending records, or only those matching the
// supplied category when it is non-empty. Ordering is not guaranteed.
func (s *Store) GetOfflineData(ctx context.Context, category models.Category) ([]models.PendingRecord, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&models.PendingRecord{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var records []models.PendingRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: get offline data: %w", err)
	}
	return records, nil
}

// MarkSynced flips the synced flag for the record with the given id inside a
// single transaction. A missing id is a no-op success.
func (s *Store) MarkSynced(ctx context.Context, id string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var record models.PendingRecord
		err := tx.Take(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: mark synced: %w", err)
		}

		record.Synced = true
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("store: mark synced: %w", err)
		}
		return nil
	})
}

// CacheResponse upserts a cached response under the supplied key. A zero ttl
// selects the 24-hour default; a negative ttl produces an entry that is
// already expired.
func (s *Store) CacheResponse(ctx context.Context, key string, payload any, ttl time.Duration) error {
	if key == "" {
		return errors.New("store: cache key is required")
	}

	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("store: encode payload: %w", err)
	}

	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	now := s.now()
	entry := models.CachedResponse{
		Key:       key,
		Response:  body,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "created_at", "expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store: cache response: %w", err)
	}
	return nil
}

// GetCachedResponse returns the payload stored under key if it has not
// expired. A found-but-expired entry is deleted in the same transaction so a
// subsequent caller never observes it (lazy eviction).
func (s *Store) GetCachedResponse(ctx context.Context, key string) (datatypes.JSON, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, false, err
	}

	var payload datatypes.JSON
	found := false

	err = db.Transaction(func(tx *gorm.DB) error {
		var entry models.CachedResponse
		err := tx.Take(&entry, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.ResponseCacheLookups.WithLabelValues("miss").Inc()
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: get cached response: %w", err)
		}

		if !entry.ExpiresAt.After(s.now()) {
			metrics.ResponseCacheLookups.WithLabelValues("expired").Inc()
			if err := tx.Delete(&models.CachedResponse{}, "key = ?", key).Error; err != nil {
				return fmt.Errorf("store: evict expired response: %w", err)
			}
			return nil
		}

		metrics.ResponseCacheLookups.WithLabelValues("hit").Inc()
		payload = entry.Response
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return payload, found, nil
}

// ClearExpiredCache sweeps the whole response cache table, removing every
// entry whose expiry has passed. It returns the number of rows deleted.
func (s *Store) ClearExpiredCache(ctx context.Context) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at <= ?", s.now()).Delete(&models.CachedResponse{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: clear expired cache: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func newRecordID(category models.Category, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", category, now.UnixMilli(), randomSuffix(idSuffixLen))
}

func randomSuffix(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// an id suffix of zeros keeps writes working in that case.
			buf[i] = idAlphabet[0]
			continue
		}
		buf[i] = idAlphabet[v.Int64()]
	}
	return string(buf)
}

func marshalPayload(payload any) (datatypes.JSON, error) {
	switch v := payload.(type) {
	case nil:
		return datatypes.JSON("null"), nil
	case datatypes.JSON:
		return v, nil
	case json.RawMessage:
		return datatypes.JSON(v), nil
	case []byte:
		if json.Valid(v) {
			return datatypes.JSON(v), nil
		}
		return nil, errors.New("payload bytes are not valid JSON")
	default:
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(body), nil
	}
}
