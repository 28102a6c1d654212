package keymanager

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"sportsdash/internal/cache"
	"sportsdash/internal/db"
	"sportsdash/internal/guard"
	"sportsdash/internal/keycode"
	"sportsdash/internal/metrics"
	"sportsdash/internal/model"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"

	"github.com/google/uuid"
)

const (
	MinQuantity = 1
	MaxQuantity = 1000

	maxIDLength        = 64
	maxSportNameLength = 100
	maxEmojiLength     = 16
)

const (
	msgGenerateFailed = "Failed to generate keys. Please try again."
	msgRevokeFailed   = "Failed to revoke key. Please try again."
	msgRestoreFailed  = "Failed to restore key. Please try again."
	msgDeleteFailed   = "Failed to delete key. Please try again."
	msgListFailed     = "Failed to load keys. Please try again."
	msgStatsFailed    = "Failed to load key statistics. Please try again."
	msgExportFailed   = "Failed to export keys. Please try again."

	msgKeyIDRequired   = "Key ID is required."
	msgEventIDRequired = "Event ID is required."
	msgKeyNotFound     = "Key not found."
	msgEventNotFound   = "Event not found."
)

// Manager defines the access key lifecycle operations used by the admin handlers.
type Manager interface {
	Generate(ctx context.Context, req security.Request, in GenerateInput) result.Result[[]model.AccessKey]
	ListByEvent(ctx context.Context, eventID string) result.Result[[]model.AccessKey]
	Stats(ctx context.Context, eventID string) result.Result[Stats]
	Export(ctx context.Context, req security.Request, eventID string) result.Result[[]byte]
	Revoke(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey]
	Restore(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey]
	Delete(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey]
	Invalidate(eventID string)
}

// GenerateInput describes one batch of keys for a sport within an event.
type GenerateInput struct {
	EventID    string `json:"eventId"`
	SportID    string `json:"sportId"`
	SportName  string `json:"sportName"`
	SportEmoji string `json:"sportEmoji"`
	Quantity   int    `json:"quantity"`
}

// Stats counts an event's keys per status.
type Stats struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Claimed   int64 `json:"claimed"`
	Revoked   int64 `json:"revoked"`
}

// KeyManager orchestrates key generation, listing, revocation, restoration
// and deletion. It never writes CLAIMED.
type KeyManager struct {
	db        db.Service
	guard     *guard.Guard
	generator *keycode.Generator
	keyLists  *cache.TTLMap[[]model.AccessKey]
	logger    *slog.Logger
	newID     func() string
}

// NewKeyManager creates a new KeyManager.
func NewKeyManager(dbService db.Service, g *guard.Guard, generator *keycode.Generator, cacheTTL time.Duration, logger *slog.Logger) *KeyManager {
	return &KeyManager{
		db:        dbService,
		guard:     g,
		generator: generator,
		keyLists:  cache.NewTTLMap[[]model.AccessKey](cacheTTL),
		logger:    logger.With("component", "keymanager"),
		newID:     uuid.NewString,
	}
}

// Generate inserts Quantity new AVAILABLE keys and returns the refreshed
// key list of the event.
func (km *KeyManager) Generate(ctx context.Context, req security.Request, in GenerateInput) result.Result[[]model.AccessKey] {
	const op = "generateKeys"
	if f := km.guard.Admit(ctx, req, op, ratelimit.Upload); f != nil {
		return metrics.Track(op, result.From[[]model.AccessKey](f, msgGenerateFailed))
	}

	eventID := security.SanitizeText(in.EventID, maxIDLength)
	sportID := security.SanitizeText(in.SportID, maxIDLength)
	sportName := security.SanitizeText(in.SportName, maxSportNameLength)
	sportEmoji := security.SanitizeText(in.SportEmoji, maxEmojiLength)
	if eventID == "" || sportID == "" || sportName == "" {
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindInvalidInput, "Event, sport and sport name are required."))
	}
	if in.Quantity < MinQuantity || in.Quantity > MaxQuantity {
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindInvalidInput,
			fmt.Sprintf("Quantity must be between %d and %d.", MinQuantity, MaxQuantity)))
	}

	event, err := km.db.GetEvent(ctx, eventID)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindNotFound, msgEventNotFound))
	}
	if err != nil {
		km.logger.Error("Failed to load event for key generation", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindStoreFailure, msgGenerateFailed))
	}

	created, err := km.insertKeys(ctx, event, sportID, sportName, sportEmoji, in.Quantity)
	if err != nil {
		km.logger.Error("Failed to generate keys", "event_id", eventID, "sport_id", sportID, "quantity", in.Quantity, "error", err)
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindStoreFailure, msgGenerateFailed))
	}
	metrics.RecordKeysGenerated(len(created))
	km.logger.Info("Generated access keys", "event_id", eventID, "sport_id", sportID, "count", len(created))
	km.Invalidate(eventID)

	gen := km.keyLists.Generation(eventID)
	keys, err := km.db.ListAccessKeysByEvent(ctx, eventID)
	if err != nil {
		// The keys exist; fall back to returning just the new batch.
		km.logger.Error("Failed to reload keys after generation", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Ok(created))
	}
	km.keyLists.SetIfGeneration(eventID, slices.Clone(keys), gen)
	return metrics.Track(op, result.Ok(keys))
}

// insertKeys writes a batch of fresh codes, retrying with new codes when the
// store reports a collision.
func (km *KeyManager) insertKeys(ctx context.Context, event *model.Event, sportID, sportName, sportEmoji string, quantity int) ([]model.AccessKey, error) {
	for attempt := 1; attempt <= keycode.MaxAttempts; attempt++ {
		codes, err := km.generator.Codes(event.Name, sportID, quantity)
		if err != nil {
			return nil, err
		}
		keys := make([]model.AccessKey, len(codes))
		for i, code := range codes {
			keys[i] = model.AccessKey{
				ID:         km.newID(),
				Code:       code,
				EventID:    event.ID,
				SportID:    sportID,
				SportName:  sportName,
				SportEmoji: sportEmoji,
				Status:     model.KeyStatusAvailable,
			}
		}

		err = km.db.CreateAccessKeys(ctx, keys)
		if errors.Is(err, db.ErrDuplicateCode) {
			metrics.RecordCodeCollision()
			km.logger.Warn("Access key code collision, regenerating batch", "event_id", event.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return keys, nil
	}
	return nil, keycode.ErrRetriesExhausted
}

// ListByEvent returns all keys of the event, newest first. It is read-only
// and not guarded.
func (km *KeyManager) ListByEvent(ctx context.Context, eventID string) result.Result[[]model.AccessKey] {
	const op = "listKeys"
	eventID = security.SanitizeText(eventID, maxIDLength)
	if eventID == "" {
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindInvalidInput, msgEventIDRequired))
	}

	if keys, ok := km.keyLists.Get(eventID); ok {
		return metrics.Track(op, result.Ok(slices.Clone(keys)))
	}

	gen := km.keyLists.Generation(eventID)
	keys, err := km.db.ListAccessKeysByEvent(ctx, eventID)
	if err != nil {
		km.logger.Error("Failed to list keys", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[[]model.AccessKey](result.KindStoreFailure, msgListFailed))
	}
	// A mutation that landed during the read leaves the list uncached.
	km.keyLists.SetIfGeneration(eventID, slices.Clone(keys), gen)
	return metrics.Track(op, result.Ok(keys))
}

// Stats counts the event's keys per status.
func (km *KeyManager) Stats(ctx context.Context, eventID string) result.Result[Stats] {
	const op = "keyStats"
	eventID = security.SanitizeText(eventID, maxIDLength)
	if eventID == "" {
		return metrics.Track(op, result.Err[Stats](result.KindInvalidInput, msgEventIDRequired))
	}

	counts, err := km.db.CountAccessKeysByStatus(ctx, eventID)
	if err != nil {
		km.logger.Error("Failed to count keys", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[Stats](result.KindStoreFailure, msgStatsFailed))
	}
	s := Stats{
		Available: counts[model.KeyStatusAvailable],
		Claimed:   counts[model.KeyStatusClaimed],
		Revoked:   counts[model.KeyStatusRevoked],
	}
	s.Total = s.Available + s.Claimed + s.Revoked
	return metrics.Track(op, result.Ok(s))
}

// Export renders the event's keys as CSV.
func (km *KeyManager) Export(ctx context.Context, req security.Request, eventID string) result.Result[[]byte] {
	const op = "exportKeys"
	if f := km.guard.Admit(ctx, req, op, ratelimit.Lenient); f != nil {
		return metrics.Track(op, result.From[[]byte](f, msgExportFailed))
	}
	eventID = security.SanitizeText(eventID, maxIDLength)
	if eventID == "" {
		return metrics.Track(op, result.Err[[]byte](result.KindInvalidInput, msgEventIDRequired))
	}

	keys, err := km.db.ListAccessKeysByEvent(ctx, eventID)
	if err != nil {
		km.logger.Error("Failed to load keys for export", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[[]byte](result.KindStoreFailure, msgExportFailed))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"code", "sport", "status", "claimed_by", "claimed_at", "created_at"})
	for _, k := range keys {
		claimedBy, claimedAt := "", ""
		if k.ClaimedByID != nil {
			claimedBy = *k.ClaimedByID
		}
		if k.ClaimedAt != nil {
			claimedAt = k.ClaimedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{k.Code, k.SportName, string(k.Status), claimedBy, claimedAt, k.CreatedAt.UTC().Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		km.logger.Error("Failed to write key export", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[[]byte](result.KindStoreFailure, msgExportFailed))
	}
	return metrics.Track(op, result.Ok(buf.Bytes()))
}

// Revoke sets the key's status to REVOKED.
func (km *KeyManager) Revoke(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey] {
	return km.setStatus(ctx, req, "revokeKey", keyID, model.KeyStatusRevoked, msgRevokeFailed)
}

// Restore sets the key's status back to AVAILABLE. Claim metadata is left
// untouched.
func (km *KeyManager) Restore(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey] {
	return km.setStatus(ctx, req, "restoreKey", keyID, model.KeyStatusAvailable, msgRestoreFailed)
}

func (km *KeyManager) setStatus(ctx context.Context, req security.Request, op, keyID string, status model.KeyStatus, generic string) result.Result[model.AccessKey] {
	if f := km.guard.Admit(ctx, req, op, ratelimit.Default); f != nil {
		return metrics.Track(op, result.From[model.AccessKey](f, generic))
	}
	keyID = security.SanitizeText(keyID, maxIDLength)
	if keyID == "" {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindInvalidInput, msgKeyIDRequired))
	}

	key, err := km.db.UpdateAccessKeyStatus(ctx, keyID, status)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindNotFound, msgKeyNotFound))
	}
	if err != nil {
		km.logger.Error("Failed to update key status", "operation", op, "key_id", keyID, "status", status, "error", err)
		return metrics.Track(op, result.Err[model.AccessKey](result.KindStoreFailure, generic))
	}
	km.Invalidate(key.EventID)
	return metrics.Track(op, result.Ok(*key))
}

// Delete permanently removes the key.
func (km *KeyManager) Delete(ctx context.Context, req security.Request, keyID string) result.Result[model.AccessKey] {
	const op = "deleteKey"
	if f := km.guard.Admit(ctx, req, op, ratelimit.Default); f != nil {
		return metrics.Track(op, result.From[model.AccessKey](f, msgDeleteFailed))
	}
	keyID = security.SanitizeText(keyID, maxIDLength)
	if keyID == "" {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindInvalidInput, msgKeyIDRequired))
	}

	key, err := km.db.DeleteAccessKey(ctx, keyID)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindNotFound, msgKeyNotFound))
	}
	if err != nil {
		km.logger.Error("Failed to delete key", "key_id", keyID, "error", err)
		return metrics.Track(op, result.Err[model.AccessKey](result.KindStoreFailure, msgDeleteFailed))
	}
	km.Invalidate(key.EventID)
	return metrics.Track(op, result.Ok(*key))
}

// Invalidate drops the cached key list of an event.
func (km *KeyManager) Invalidate(eventID string) {
	km.keyLists.Delete(eventID)
}

// PurgeCache drops expired cached key lists.
func (km *KeyManager) PurgeCache() int {
	return km.keyLists.Purge()
}
