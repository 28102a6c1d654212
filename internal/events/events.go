package events

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"sportsdash/internal/db"
	"sportsdash/internal/guard"
	"sportsdash/internal/metrics"
	"sportsdash/internal/model"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"
	"sportsdash/internal/storage"

	"github.com/google/uuid"
)

const (
	maxIDLength          = 64
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxLocationLength    = 200
	maxSponsorNameLength = 100
	// MaxSponsorLogos bounds one sponsor upload request.
	MaxSponsorLogos = 20
)

const (
	msgCreateFailed    = "Failed to create event. Please try again."
	msgDeleteFailed    = "Failed to delete event. Please try again."
	msgDuplicateFailed = "Failed to duplicate event. Please try again."
	msgUploadFailed    = "Failed to upload sponsor logos. Please try again."
	msgLoadFailed      = "Failed to load events. Please try again."
	msgEventNotFound   = "Event not found."
)

// Upload is a base64 image payload, optionally with a data-URL header.
type Upload struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Data     string `json:"data"`
}

// CreateInput describes a new event.
type CreateInput struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    *time.Time `json:"startsAt"`
	Logo        *Upload    `json:"logo"`
}

// UploadReport is the aggregate of independent sponsor logo uploads.
type UploadReport struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Summary   string              `json:"summary"`
	Logos     []model.SponsorLogo `json:"logos"`
	Errors    []string            `json:"errors,omitempty"`
}

// Invalidator drops cached key lists of an event.
type Invalidator interface {
	Invalidate(eventID string)
}

// Manager handles event CRUD and logo uploads.
type Manager struct {
	db          db.Service
	guard       *guard.Guard
	store       storage.ObjectStore
	invalidator Invalidator
	maxUpload   int
	logger      *slog.Logger
}

// NewManager creates an event Manager.
func NewManager(dbService db.Service, g *guard.Guard, store storage.ObjectStore, invalidator Invalidator, maxUploadBytes int, logger *slog.Logger) *Manager {
	if maxUploadBytes <= 0 {
		maxUploadBytes = security.MaxUploadBytes
	}
	return &Manager{
		db:          dbService,
		guard:       g,
		store:       store,
		invalidator: invalidator,
		maxUpload:   maxUploadBytes,
		logger:      logger.With("component", "events"),
	}
}

// Create validates and stores a new event, uploading its logo if present.
func (m *Manager) Create(ctx context.Context, req security.Request, in CreateInput) result.Result[model.Event] {
	const op = "createEvent"
	class := ratelimit.Default
	if in.Logo != nil {
		class = ratelimit.Upload
	}
	if f := m.guard.Admit(ctx, req, op, class); f != nil {
		return metrics.Track(op, result.From[model.Event](f, msgCreateFailed))
	}

	event := model.Event{
		ID:          security.SanitizeIdentifierForPath(security.SanitizeText(in.ID, maxIDLength)),
		Name:        security.SanitizeText(in.Name, maxNameLength),
		Description: security.SanitizeText(in.Description, maxDescriptionLength),
		Location:    security.SanitizeText(in.Location, maxLocationLength),
		StartsAt:    in.StartsAt,
	}
	if event.Name == "" {
		return metrics.Track(op, result.Err[model.Event](result.KindInvalidInput, "Event name is required."))
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if in.Logo != nil {
		ext, data, msg := m.decodeImage(*in.Logo)
		if msg != "" {
			return metrics.Track(op, result.Err[model.Event](result.KindInvalidInput, msg))
		}
		// Logo names are unique so a rejected create never touches the
		// files of an existing event with the same id.
		stored, err := m.store.Put(ctx, logoPath(event.ID, ext), data)
		if err != nil {
			m.logger.Error("Failed to store event logo", "event_id", event.ID, "error", err)
			return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgCreateFailed))
		}
		event.LogoPath = stored
	}

	err := m.db.CreateEvent(ctx, &event)
	if err != nil {
		m.removeObject(ctx, event.ID, event.LogoPath)
	}
	if errors.Is(err, db.ErrAlreadyExists) {
		return metrics.Track(op, result.Err[model.Event](result.KindInvalidInput, "An event with this ID already exists."))
	}
	if err != nil {
		m.logger.Error("Failed to create event", "event_id", event.ID, "error", err)
		return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgCreateFailed))
	}
	m.logger.Info("Event created", "event_id", event.ID)
	return metrics.Track(op, result.Ok(event))
}

// List returns all events, newest first.
func (m *Manager) List(ctx context.Context) result.Result[[]model.Event] {
	events, err := m.db.ListEvents(ctx)
	if err != nil {
		m.logger.Error("Failed to list events", "error", err)
		return metrics.Track("listEvents", result.Err[[]model.Event](result.KindStoreFailure, msgLoadFailed))
	}
	return metrics.Track("listEvents", result.Ok(events))
}

// Get returns one event with its sponsor logos.
func (m *Manager) Get(ctx context.Context, id string) result.Result[model.Event] {
	const op = "getEvent"
	id = security.SanitizeText(id, maxIDLength)
	if id == "" {
		return metrics.Track(op, result.Err[model.Event](result.KindInvalidInput, "Event ID is required."))
	}
	event, err := m.db.GetEvent(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[model.Event](result.KindNotFound, msgEventNotFound))
	}
	if err != nil {
		m.logger.Error("Failed to load event", "event_id", id, "error", err)
		return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgLoadFailed))
	}
	return metrics.Track(op, result.Ok(*event))
}

// Delete removes the event, its keys and its uploaded assets.
func (m *Manager) Delete(ctx context.Context, req security.Request, id string) result.Result[string] {
	const op = "deleteEvent"
	if f := m.guard.Admit(ctx, req, op, ratelimit.Strict); f != nil {
		return metrics.Track(op, result.From[string](f, msgDeleteFailed))
	}
	id = security.SanitizeText(id, maxIDLength)
	if id == "" {
		return metrics.Track(op, result.Err[string](result.KindInvalidInput, "Event ID is required."))
	}

	err := m.db.DeleteEvent(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[string](result.KindNotFound, msgEventNotFound))
	}
	if err != nil {
		m.logger.Error("Failed to delete event", "event_id", id, "error", err)
		return metrics.Track(op, result.Err[string](result.KindStoreFailure, msgDeleteFailed))
	}
	m.invalidator.Invalidate(id)

	if dir := security.SanitizeIdentifierForPath(id); dir != "" {
		if err := m.store.Delete(ctx, "events/"+dir); err != nil {
			// The rows are gone; orphaned files are only logged.
			m.logger.Warn("Failed to delete event assets", "event_id", id, "error", err)
		}
	}
	m.logger.Info("Event deleted", "event_id", id)
	return metrics.Track(op, result.Ok(id))
}

// Duplicate copies an event under a new id. Keys are never copied.
func (m *Manager) Duplicate(ctx context.Context, req security.Request, id string) result.Result[model.Event] {
	const op = "duplicateEvent"
	if f := m.guard.Admit(ctx, req, op, ratelimit.Strict); f != nil {
		return metrics.Track(op, result.From[model.Event](f, msgDuplicateFailed))
	}
	id = security.SanitizeText(id, maxIDLength)
	if id == "" {
		return metrics.Track(op, result.Err[model.Event](result.KindInvalidInput, "Event ID is required."))
	}

	source, err := m.db.GetEvent(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[model.Event](result.KindNotFound, msgEventNotFound))
	}
	if err != nil {
		m.logger.Error("Failed to load event for duplication", "event_id", id, "error", err)
		return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgDuplicateFailed))
	}

	copied := model.Event{
		ID:          uuid.NewString(),
		Name:        security.SanitizeText(source.Name+" (Copy)", maxNameLength),
		Description: source.Description,
		Location:    source.Location,
		StartsAt:    source.StartsAt,
	}
	// The copy owns its logo; deleting the source removes the source's files.
	if source.LogoPath != "" {
		ext := strings.TrimPrefix(path.Ext(source.LogoPath), ".")
		logo, err := m.store.Copy(ctx, source.LogoPath, logoPath(copied.ID, ext))
		if err != nil {
			m.logger.Error("Failed to copy event logo", "event_id", id, "error", err)
			return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgDuplicateFailed))
		}
		copied.LogoPath = logo
	}
	if err := m.db.CreateEvent(ctx, &copied); err != nil {
		m.removeObject(ctx, copied.ID, copied.LogoPath)
		m.logger.Error("Failed to duplicate event", "event_id", id, "error", err)
		return metrics.Track(op, result.Err[model.Event](result.KindStoreFailure, msgDuplicateFailed))
	}
	return metrics.Track(op, result.Ok(copied))
}

// UploadSponsorLogos stores each file independently. The report is partial
// when some files fail; the operation itself only fails when none of the
// files could be attempted.
func (m *Manager) UploadSponsorLogos(ctx context.Context, req security.Request, eventID string, files []Upload) result.Result[UploadReport] {
	const op = "uploadSponsorLogos"
	if f := m.guard.Admit(ctx, req, op, ratelimit.Upload); f != nil {
		return metrics.Track(op, result.From[UploadReport](f, msgUploadFailed))
	}
	eventID = security.SanitizeText(eventID, maxIDLength)
	if eventID == "" {
		return metrics.Track(op, result.Err[UploadReport](result.KindInvalidInput, "Event ID is required."))
	}
	if len(files) == 0 || len(files) > MaxSponsorLogos {
		return metrics.Track(op, result.Err[UploadReport](result.KindInvalidInput,
			fmt.Sprintf("Between 1 and %d logos can be uploaded at once.", MaxSponsorLogos)))
	}

	if _, err := m.db.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return metrics.Track(op, result.Err[UploadReport](result.KindNotFound, msgEventNotFound))
		}
		m.logger.Error("Failed to load event for sponsor upload", "event_id", eventID, "error", err)
		return metrics.Track(op, result.Err[UploadReport](result.KindStoreFailure, msgUploadFailed))
	}

	dir := security.SanitizeIdentifierForPath(eventID)
	report := UploadReport{Total: len(files), Logos: []model.SponsorLogo{}}
	for i, file := range files {
		logo, err := m.uploadSponsorLogo(ctx, eventID, dir, file)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("file %d: %s", i+1, err.Error()))
			continue
		}
		report.Succeeded++
		report.Logos = append(report.Logos, *logo)
	}
	report.Summary = fmt.Sprintf("%d of %d succeeded", report.Succeeded, report.Total)
	m.logger.Info("Sponsor logos uploaded", "event_id", eventID, "succeeded", report.Succeeded, "failed", report.Failed)
	return metrics.Track(op, result.Ok(report))
}

func logoPath(eventID, ext string) string {
	return fmt.Sprintf("events/%s/logo-%s.%s", eventID, uuid.NewString(), ext)
}

// removeObject drops an object stored for a write that did not go through.
func (m *Manager) removeObject(ctx context.Context, eventID, objectPath string) {
	if objectPath == "" {
		return
	}
	if err := m.store.Delete(ctx, objectPath); err != nil {
		m.logger.Warn("Failed to remove orphaned upload", "event_id", eventID, "error", err)
	}
}

// uploadError carries a message that is safe to show to the caller.
type uploadError string

func (e uploadError) Error() string { return string(e) }

func (m *Manager) uploadSponsorLogo(ctx context.Context, eventID, dir string, file Upload) (*model.SponsorLogo, error) {
	ext, data, msg := m.decodeImage(file)
	if msg != "" {
		return nil, uploadError(msg)
	}
	id := uuid.NewString()
	stored, err := m.store.Put(ctx, fmt.Sprintf("events/%s/sponsors/%s.%s", dir, id, ext), data)
	if err != nil {
		m.logger.Error("Failed to store sponsor logo", "event_id", eventID, "error", err)
		return nil, uploadError("upload failed")
	}
	logo := &model.SponsorLogo{
		ID:      id,
		EventID: eventID,
		Name:    security.SanitizeText(file.Name, maxSponsorNameLength),
		Path:    stored,
	}
	if err := m.db.AddSponsorLogo(ctx, logo); err != nil {
		m.removeObject(ctx, eventID, stored)
		m.logger.Error("Failed to record sponsor logo", "event_id", eventID, "error", err)
		return nil, uploadError("upload failed")
	}
	return logo, nil
}

// decodeImage validates and decodes an upload. A non-empty message means the
// upload was rejected.
func (m *Manager) decodeImage(u Upload) (ext string, data []byte, message string) {
	ext, ok := security.ValidateImageExtension(u.Filename)
	if !ok {
		return "", nil, "Only PNG, JPG, JPEG and WEBP images are allowed."
	}
	if !security.ValidateEncodedSize(u.Data, m.maxUpload) {
		return "", nil, fmt.Sprintf("Images must be at most %d MB.", m.maxUpload>>20)
	}
	encoded := strings.TrimSpace(security.StripDataURL(u.Data))
	if encoded == "" {
		return "", nil, "Image data is required."
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, "Image data is not valid base64."
	}
	return ext, data, ""
}
