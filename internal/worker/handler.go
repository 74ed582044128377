package worker

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
)

// Handler is the node's intake endpoint.
type Handler struct {
	queue *Queue
	blobs *storage.BlobStore
	log   *logger.Logger
	now   func() time.Time
}

func NewHandler(queue *Queue, blobs *storage.BlobStore, log *logger.Logger) *Handler {
	return &Handler{queue: queue, blobs: blobs, log: log.WithComponent("intake"), now: time.Now}
}

// Register mounts POST /job.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/job", h.intake)
}

type intakeResponse struct {
	JobID       string `json:"job_id"`
	Clip        string `json:"clip"`
	QueueLength int    `json:"queue_length"`
}

func (h *Handler) intake(c *gin.Context) {
	ctx := c.Request.Context()
	recordedAt, err := ParseTimestamp(c.PostForm("timestamp"))
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("timestamp", err.Error()))
		return
	}
	fh, err := c.FormFile("clip")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingField("clip"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("clip", err.Error()))
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil || len(data) == 0 {
		server.RespondWithError(c, apperrors.InvalidInput("clip", "empty or unreadable upload"))
		return
	}

	hash, err := h.blobs.Put(ctx, storage.KindClip, data)
	if err != nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("clip storage").WithCause(err))
		return
	}

	jobID := c.PostForm("job_id")
	if jobID == "" {
		jobID = uuid.NewString()
	}
	job := Job{
		ID:         jobID,
		ClipHash:   hash,
		FileName:   fh.Filename,
		UserID:     c.PostForm("user_id"),
		EnqueuedAt: h.now(),
		RecordedAt: recordedAt,
	}
	if err := h.queue.Enqueue(job); err != nil {
		h.log.WithContext(ctx).Warn("queue full, job rejected", logger.Fields(logger.FieldJobID, jobID))
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(ctx).Info("job queued", logger.Fields(
		logger.FieldJobID, jobID,
		logger.FieldClip, hash,
		"size_kb", len(data)/1024,
		logger.FieldQueueLength, h.queue.Len(),
	))
	server.RespondAccepted(c, intakeResponse{JobID: jobID, Clip: hash, QueueLength: h.queue.Len()})
}
