// Package speakerapi exposes speaker enrollment and subclip corrections
// over HTTP.
package speakerapi

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/speaker"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
	"github.com/701789262a/backend-dailychat/validation"
)

// Store is the subset of speaker.Repository the routes use.
type Store interface {
	Enroll(ctx context.Context, name string, sub *speaker.Subclip) (*speaker.Speaker, error)
	GetSpeaker(ctx context.Context, id int64) (*speaker.Speaker, error)
	ListSpeakers(ctx context.Context) ([]speaker.Speaker, error)
	GetSubclip(ctx context.Context, hash string) (*speaker.Subclip, error)
	Reassign(ctx context.Context, hash string, speakerID int64) error
	DeleteSubclip(ctx context.Context, hash string) error
	References(ctx context.Context, speakerID int64, limit int) ([]speaker.Reference, error)
}

// Blobs reports whether audio for a hash has been stored. A reference
// without audio would fail every later identification.
type Blobs interface {
	Has(ctx context.Context, kind storage.Kind, hash string) (bool, error)
}

type Handler struct {
	store Store
	blobs Blobs
	log   *logger.Logger
}

func NewHandler(store Store, blobs Blobs, log *logger.Logger) *Handler {
	return &Handler{store: store, blobs: blobs, log: log.WithComponent("speakers")}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/speakers", h.create)
	r.GET("/speakers", h.list)
	r.GET("/speakers/:id", h.get)
	r.GET("/speakers/:id/references", h.references)
	r.GET("/subclips/:hash", h.getSubclip)
	r.PUT("/subclips/:hash/speaker", h.reassign)
	r.DELETE("/subclips/:hash", h.deleteSubclip)
}

type createRequest struct {
	Name       string    `json:"name" validate:"required,max=128"`
	Subclip    string    `json:"subclip" validate:"omitempty,contenthash"`
	Segment    string    `json:"segment" validate:"omitempty,json"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	var sub *speaker.Subclip
	if req.Subclip != "" {
		stored, err := h.blobs.Has(c.Request.Context(), storage.KindSubclip, req.Subclip)
		if err != nil {
			server.RespondWithError(c, apperrors.ExternalServiceError("storage", err))
			return
		}
		if !stored {
			server.RespondWithError(c, apperrors.InvalidInput("subclip", "no audio stored for this subclip"))
			return
		}
		recorded := req.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		sub = &speaker.Subclip{Hash: req.Subclip, SegmentJSON: req.Segment, RecordedAt: recorded}
	}
	s, err := h.store.Enroll(c.Request.Context(), req.Name, sub)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("speaker enrolled",
		logger.Fields(logger.FieldSpeakerID, s.ID, logger.FieldSubclip, req.Subclip))
	server.RespondCreated(c, s)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.store.ListSpeakers(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := speakerID(c)
	if !ok {
		return
	}
	s, err := h.store.GetSpeaker(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, s)
}

func (h *Handler) references(c *gin.Context) {
	id, ok := speakerID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		v := validation.New()
		v.Custom(err == nil && n > 0 && n <= 1000, "limit", "must be between 1 and 1000")
		if err := v.Validate(); err != nil {
			server.RespondWithError(c, err)
			return
		}
		limit = n
	}
	if _, err := h.store.GetSpeaker(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	refs, err := h.store.References(c.Request.Context(), id, limit)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, refs)
}

func (h *Handler) getSubclip(c *gin.Context) {
	hash, ok := subclipHash(c)
	if !ok {
		return
	}
	sub, err := h.store.GetSubclip(c.Request.Context(), hash)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sub)
}

type reassignRequest struct {
	SpeakerID *int64 `json:"speaker_id" validate:"required,min=0"`
}

func (h *Handler) reassign(c *gin.Context) {
	hash, ok := subclipHash(c)
	if !ok {
		return
	}
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.store.Reassign(c.Request.Context(), hash, *req.SpeakerID); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("subclip reassigned",
		logger.Fields(logger.FieldSubclip, hash, logger.FieldSpeakerID, *req.SpeakerID))
	server.RespondNoContent(c)
}

func (h *Handler) deleteSubclip(c *gin.Context) {
	hash, ok := subclipHash(c)
	if !ok {
		return
	}
	if err := h.store.DeleteSubclip(c.Request.Context(), hash); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

func speakerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		server.RespondWithError(c, apperrors.InvalidInput("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func subclipHash(c *gin.Context) (string, bool) {
	hash := c.Param("hash")
	if !validation.IsContentHash(hash) {
		server.RespondWithError(c, apperrors.InvalidInput("hash", "must be a sha256 hex digest"))
		return "", false
	}
	return hash, true
}
