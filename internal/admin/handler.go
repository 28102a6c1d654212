package admin

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"sportsdash/internal/events"
	"sportsdash/internal/keymanager"
	"sportsdash/internal/model"
	"sportsdash/internal/result"
	"sportsdash/internal/security"

	"github.com/gin-gonic/gin"
)

const msgInvalidBody = "Invalid request body."

// EventService is the subset of the event manager used by the handlers.
type EventService interface {
	Create(ctx context.Context, req security.Request, in events.CreateInput) result.Result[model.Event]
	List(ctx context.Context) result.Result[[]model.Event]
	Get(ctx context.Context, id string) result.Result[model.Event]
	Delete(ctx context.Context, req security.Request, id string) result.Result[string]
	Duplicate(ctx context.Context, req security.Request, id string) result.Result[model.Event]
	UploadSponsorLogos(ctx context.Context, req security.Request, eventID string, files []events.Upload) result.Result[events.UploadReport]
}

// ClaimService claims keys for participants.
type ClaimService interface {
	Claim(ctx context.Context, req security.Request, code, participantID string) result.Result[model.AccessKey]
}

type GenerateKeysRequest struct {
	SportID    string `json:"sportId"`
	SportName  string `json:"sportName"`
	SportEmoji string `json:"sportEmoji"`
	Quantity   int    `json:"quantity"`
}

type SponsorLogosRequest struct {
	Files []events.Upload `json:"files"`
}

type ClaimRequest struct {
	Code          string `json:"code"`
	ParticipantID string `json:"participantId"`
}

type Handler struct {
	keys   keymanager.Manager
	events EventService
	claims ClaimService
}

func NewHandler(keys keymanager.Manager, eventService EventService, claims ClaimService) *Handler {
	return &Handler{keys: keys, events: eventService, claims: claims}
}

// requestFrom extracts the request attributes the guard looks at.
func requestFrom(c *gin.Context) security.Request {
	return security.Request{
		Host:     c.Request.Host,
		Referer:  c.GetHeader("Referer"),
		Origin:   c.GetHeader("Origin"),
		ClientID: c.ClientIP(),
	}
}

func statusFor(kind result.Kind) int {
	switch kind {
	case result.KindNone:
		return http.StatusOK
	case result.KindInvalidInput:
		return http.StatusBadRequest
	case result.KindNotFound:
		return http.StatusNotFound
	case result.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		// Origin rejections are indistinguishable from store failures.
		return http.StatusInternalServerError
	}
}

func respond[T any](c *gin.Context, successStatus int, r result.Result[T]) {
	if r.Success {
		c.JSON(successStatus, r)
		return
	}
	if r.Kind == result.KindRateLimited && r.ResetAt != nil {
		seconds := int(math.Ceil(time.Until(*r.ResetAt).Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	c.JSON(statusFor(r.Kind), r)
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, result.Err[any](result.KindInvalidInput, msgInvalidBody))
}

func (h *Handler) ListEventsHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.events.List(c.Request.Context()))
}

func (h *Handler) CreateEventHandler(c *gin.Context) {
	var in events.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	respond(c, http.StatusCreated, h.events.Create(c.Request.Context(), requestFrom(c), in))
}

func (h *Handler) GetEventHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.events.Get(c.Request.Context(), c.Param("id")))
}

func (h *Handler) DeleteEventHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.events.Delete(c.Request.Context(), requestFrom(c), c.Param("id")))
}

func (h *Handler) DuplicateEventHandler(c *gin.Context) {
	respond(c, http.StatusCreated, h.events.Duplicate(c.Request.Context(), requestFrom(c), c.Param("id")))
}

func (h *Handler) UploadSponsorLogosHandler(c *gin.Context) {
	var req SponsorLogosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	respond(c, http.StatusOK, h.events.UploadSponsorLogos(c.Request.Context(), requestFrom(c), c.Param("id"), req.Files))
}

func (h *Handler) ListKeysHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.keys.ListByEvent(c.Request.Context(), c.Param("id")))
}

func (h *Handler) GenerateKeysHandler(c *gin.Context) {
	var req GenerateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	in := keymanager.GenerateInput{
		EventID:    c.Param("id"),
		SportID:    req.SportID,
		SportName:  req.SportName,
		SportEmoji: req.SportEmoji,
		Quantity:   req.Quantity,
	}
	respond(c, http.StatusCreated, h.keys.Generate(c.Request.Context(), requestFrom(c), in))
}

func (h *Handler) KeyStatsHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.keys.Stats(c.Request.Context(), c.Param("id")))
}

func (h *Handler) ExportKeysHandler(c *gin.Context) {
	eventID := c.Param("id")
	r := h.keys.Export(c.Request.Context(), requestFrom(c), eventID)
	if !r.Success {
		respond(c, http.StatusOK, r)
		return
	}
	filename := fmt.Sprintf("keys-%s.csv", security.SanitizeIdentifierForPath(eventID))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", r.Data)
}

func (h *Handler) RevokeKeyHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.keys.Revoke(c.Request.Context(), requestFrom(c), c.Param("id")))
}

func (h *Handler) RestoreKeyHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.keys.Restore(c.Request.Context(), requestFrom(c), c.Param("id")))
}

func (h *Handler) DeleteKeyHandler(c *gin.Context) {
	respond(c, http.StatusOK, h.keys.Delete(c.Request.Context(), requestFrom(c), c.Param("id")))
}

func (h *Handler) ClaimKeyHandler(c *gin.Context) {
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	respond(c, http.StatusOK, h.claims.Claim(c.Request.Context(), requestFrom(c), req.Code, req.ParticipantID))
}
