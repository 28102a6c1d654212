package events

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sportsdash/internal/config"
	"sportsdash/internal/db"
	"sportsdash/internal/guard"
	"sportsdash/internal/logger"
	"sportsdash/internal/model"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"
	"sportsdash/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	events []string
}

func (r *recordingInvalidator) Invalidate(eventID string) {
	r.events = append(r.events, eventID)
}

type fixture struct {
	manager *Manager
	db      db.Service
	root    string
	inv     *recordingInvalidator
}

func setup(t *testing.T, maxUpload int) fixture {
	t.Helper()
	dbService, err := db.NewService(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)

	classes := config.DefaultRateClasses()
	for name := range classes {
		classes[name] = config.RateClassConfig{MaxRequests: 1000, Window: time.Minute}
	}
	limiter, err := ratelimit.New(config.Production, classes, ratelimit.NewMemoryStore(), logger.Discard())
	require.NoError(t, err)
	g := guard.New(security.NewOriginGuard(config.Production), limiter, logger.Discard())

	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	inv := &recordingInvalidator{}
	return fixture{
		manager: NewManager(dbService, g, store, inv, maxUpload, logger.Discard()),
		db:      dbService,
		root:    root,
		inv:     inv,
	}
}

var adminReq = security.Request{Host: "app.example", Referer: "https://app.example/events", ClientID: "10.0.0.1"}

func png(size int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(make([]byte, size))
}

func pngOf(content string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func readObject(t *testing.T, f fixture, objectPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(objectPath)))
	require.NoError(t, err)
	return string(data)
}

func TestCreate(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	r := f.manager.Create(ctx, adminReq, CreateInput{
		ID:          "EVT-001",
		Name:        "  Everest Games  ",
		Description: "Annual",
		Logo:        &Upload{Filename: "logo.PNG", Data: png(16)},
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "Everest Games", r.Data.Name)
	assert.Regexp(t, `^events/EVT-001/logo-[0-9a-f-]{36}\.png$`, r.Data.LogoPath)

	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(r.Data.LogoPath)))
	assert.NoError(t, err)

	dup := f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Again"})
	assert.Equal(t, result.KindInvalidInput, dup.Kind)

	generated := f.manager.Create(ctx, adminReq, CreateInput{Name: "No ID"})
	require.True(t, generated.Success)
	assert.NotEmpty(t, generated.Data.ID)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t, 100)
	ctx := context.Background()

	assert.Equal(t, result.KindInvalidInput, f.manager.Create(ctx, adminReq, CreateInput{Name: "   "}).Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.Create(ctx, adminReq, CreateInput{
		Name: "Cup", Logo: &Upload{Filename: "logo.png.exe", Data: png(10)},
	}).Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.Create(ctx, adminReq, CreateInput{
		Name: "Cup", Logo: &Upload{Filename: "logo.png", Data: png(101)},
	}).Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.Create(ctx, adminReq, CreateInput{
		Name: "Cup", Logo: &Upload{Filename: "logo.png", Data: "data:image/png;base64,!!!!"},
	}).Kind)

	evil := security.Request{Host: "app.example", Referer: "https://evil.example/"}
	r := f.manager.Create(ctx, evil, CreateInput{Name: "Cup"})
	assert.Equal(t, result.KindOriginRejected, r.Kind)
	assert.Equal(t, "Failed to create event. Please try again.", r.Error)

	list := f.manager.List(ctx)
	require.True(t, list.Success)
	assert.Empty(t, list.Data)
}

func TestCreateSanitizesIDForPaths(t *testing.T) {
	f := setup(t, 0)
	r := f.manager.Create(context.Background(), adminReq, CreateInput{
		ID:   "../../etc",
		Name: "Sneaky",
		Logo: &Upload{Filename: "a.png", Data: png(4)},
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "etc", r.Data.ID)
	assert.Regexp(t, `^events/etc/logo-[0-9a-f-]{36}\.png$`, r.Data.LogoPath)
}

func TestGetAndDelete(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	require.True(t, f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Everest", Logo: &Upload{Filename: "l.webp", Data: png(4)}}).Success)
	require.NoError(t, f.db.CreateAccessKeys(ctx, []model.AccessKey{{
		ID: "k1", Code: "EV26-AAAAAA-SWI", EventID: "EVT-001", SportID: "swimming", SportName: "Swimming", Status: model.KeyStatusAvailable,
	}}))

	got := f.manager.Get(ctx, "EVT-001")
	require.True(t, got.Success)
	assert.Equal(t, "Everest", got.Data.Name)
	assert.Equal(t, result.KindNotFound, f.manager.Get(ctx, "EVT-404").Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.Get(ctx, "").Kind)

	deleted := f.manager.Delete(ctx, adminReq, "EVT-001")
	require.True(t, deleted.Success, deleted.Error)
	assert.Equal(t, []string{"EVT-001"}, f.inv.events)
	_, err := os.Stat(filepath.Join(f.root, "events", "EVT-001"))
	assert.True(t, os.IsNotExist(err))

	keys, err := f.db.ListAccessKeysByEvent(ctx, "EVT-001")
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Equal(t, result.KindNotFound, f.manager.Delete(ctx, adminReq, "EVT-001").Kind)
}

func TestDuplicate(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	require.True(t, f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Everest", Location: "Nepal"}).Success)
	require.NoError(t, f.db.CreateAccessKeys(ctx, []model.AccessKey{{
		ID: "k1", Code: "EV26-AAAAAA-SWI", EventID: "EVT-001", SportID: "swimming", SportName: "Swimming", Status: model.KeyStatusAvailable,
	}}))

	r := f.manager.Duplicate(ctx, adminReq, "EVT-001")
	require.True(t, r.Success, r.Error)
	assert.NotEqual(t, "EVT-001", r.Data.ID)
	assert.Equal(t, "Everest (Copy)", r.Data.Name)
	assert.Equal(t, "Nepal", r.Data.Location)

	keys, err := f.db.ListAccessKeysByEvent(ctx, r.Data.ID)
	require.NoError(t, err)
	assert.Empty(t, keys, "duplication never copies keys")

	assert.Equal(t, result.KindNotFound, f.manager.Duplicate(ctx, adminReq, "EVT-404").Kind)
}

func TestUploadSponsorLogosPartial(t *testing.T) {
	f := setup(t, 64)
	ctx := context.Background()
	require.True(t, f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Everest"}).Success)

	r := f.manager.UploadSponsorLogos(ctx, adminReq, "EVT-001", []Upload{
		{Filename: "acme.png", Name: "Acme", Data: png(10)},
		{Filename: "virus.exe", Data: png(10)},
		{Filename: "big.jpg", Data: png(65)},
		{Filename: "globex.jpeg", Name: "Globex", Data: png(64)},
		{Filename: "initech.webp", Data: png(1)},
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, 5, r.Data.Total)
	assert.Equal(t, 3, r.Data.Succeeded)
	assert.Equal(t, 2, r.Data.Failed)
	assert.Equal(t, "3 of 5 succeeded", r.Data.Summary)
	assert.Len(t, r.Data.Errors, 2)

	event := f.manager.Get(ctx, "EVT-001")
	require.True(t, event.Success)
	assert.Len(t, event.Data.Sponsors, 3)
}

func TestUploadSponsorLogosValidation(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	assert.Equal(t, result.KindNotFound, f.manager.UploadSponsorLogos(ctx, adminReq, "EVT-404", []Upload{{Filename: "a.png", Data: png(1)}}).Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.UploadSponsorLogos(ctx, adminReq, "EVT-001", nil).Kind)
	assert.Equal(t, result.KindInvalidInput, f.manager.UploadSponsorLogos(ctx, adminReq, "", []Upload{{Filename: "a.png", Data: png(1)}}).Kind)
}

func TestCreateWithTakenIDKeepsExistingLogo(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	original := f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Everest", Logo: &Upload{Filename: "logo.png", Data: pngOf("ORIGINAL")}})
	require.True(t, original.Success, original.Error)

	again := f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Other", Logo: &Upload{Filename: "logo.png", Data: pngOf("REPLACED")}})
	assert.Equal(t, result.KindInvalidInput, again.Kind)

	assert.Equal(t, "ORIGINAL", readObject(t, f, original.Data.LogoPath))
	entries, err := os.ReadDir(filepath.Join(f.root, "events", "EVT-001"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the rejected upload is removed")
}

func TestDuplicateOwnsItsLogo(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	source := f.manager.Create(ctx, adminReq, CreateInput{ID: "EVT-001", Name: "Everest", Logo: &Upload{Filename: "logo.png", Data: pngOf("LOGO")}})
	require.True(t, source.Success, source.Error)

	copied := f.manager.Duplicate(ctx, adminReq, "EVT-001")
	require.True(t, copied.Success, copied.Error)
	assert.Regexp(t, `^events/`+copied.Data.ID+`/logo-[0-9a-f-]{36}\.png$`, copied.Data.LogoPath)

	require.True(t, f.manager.Delete(ctx, adminReq, "EVT-001").Success)
	assert.Equal(t, "LOGO", readObject(t, f, copied.Data.LogoPath))

	stored := f.manager.Get(ctx, copied.Data.ID)
	require.True(t, stored.Success)
	assert.Equal(t, copied.Data.LogoPath, stored.Data.LogoPath)
}
