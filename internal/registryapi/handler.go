// Package registryapi exposes the node registry over HTTP: the live node
// map, the idempotent probe start, and the unbusy relay to the dispatcher.
package registryapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/httpclient"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/server"
)

// Starter starts the probe loop; repeated calls must be harmless.
type Starter interface {
	Start(ctx context.Context) bool
}

// Handler serves the registry endpoints.
type Handler struct {
	registry *node.Registry
	prober   Starter
	// base outlives requests; the probe loop runs under it.
	base       context.Context
	dispatcher node.URLResolver
	client     *httpclient.Client
	log        *logger.Logger
}

// NewHandler builds the handler. base bounds the probe loop started by
// GET /start; dispatcher locates the dispatcher for the unbusy relay.
func NewHandler(base context.Context, registry *node.Registry, prober Starter, dispatcher node.URLResolver, log *logger.Logger) (*Handler, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout: 5 * time.Second,
		Retry:   httpclient.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, err
	}
	return &Handler{
		registry:   registry,
		prober:     prober,
		base:       base,
		dispatcher: dispatcher,
		client:     client,
		log:        log.WithComponent("registryapi"),
	}, nil
}

// Register mounts the routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.status)
	r.GET("/start", h.start)
	r.GET("/unbusy", h.unbusy)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, node.ToStatusMap(h.registry.Snapshot()))
}

func (h *Handler) start(c *gin.Context) {
	started := h.prober.Start(h.base)
	if started {
		h.log.Info("probe loop started on request", logger.Fields("remote", c.RemoteIP()))
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

// unbusy forwards the caller's own address to the dispatcher, for nodes
// that only know the registry.
func (h *Handler) unbusy(c *gin.Context) {
	ip := c.RemoteIP()
	ctx := c.Request.Context()

	base, err := h.dispatcher(ctx)
	if err != nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("dispatcher").WithCause(err))
		return
	}
	_, err = h.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   base + "/unbusy",
		Query:  map[string]string{"ip": ip},
	})
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Warn("unbusy relay failed", logger.Fields(logger.FieldNode, ip))
		server.RespondWithError(c, httpclient.ToAppError("dispatcher", err))
		return
	}
	c.Status(http.StatusOK)
}
