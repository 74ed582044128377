package dispatch

import (
	"io"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/validation"
)

// Handler serves the dispatcher's public endpoints.
type Handler struct {
	d *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler { return &Handler{d: d} }

// Register mounts POST /, GET /unbusy and GET /busy.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/", h.submit)
	r.GET("/unbusy", h.unbusy)
	r.GET("/busy", h.listBusy)
}

type submitForm struct {
	Timestamp string `form:"timestamp" validate:"required"`
	UserID    string `form:"user_id" validate:"omitempty,max=64"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	Node  string `json:"node"`
}

func (h *Handler) submit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("", err.Error()))
		return
	}
	if err := validation.Validate(form); err != nil {
		server.RespondWithError(c, err)
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
	clip, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil || len(clip) == 0 {
		server.RespondWithError(c, apperrors.InvalidInput("clip", "empty or unreadable upload"))
		return
	}

	jobID := c.GetHeader("X-Request-Id")
	if jobID == "" {
		jobID = uuid.NewString()
	}
	addr, err := h.d.Assign(c.Request.Context(), Job{
		ID:        jobID,
		Clip:      clip,
		FileName:  fh.Filename,
		Timestamp: form.Timestamp,
		UserID:    form.UserID,
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, submitResponse{JobID: jobID, Node: addr})
}

func (h *Handler) unbusy(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		ip = c.RemoteIP()
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("ip", "must be an IP address"))
		return
	}
	if err := h.d.Release(c.Request.Context(), ip); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) listBusy(c *gin.Context) {
	members, err := h.d.Busy(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("busy set").WithCause(err))
		return
	}
	server.RespondOK(c, members)
}
