// Package transport is the WebSocket edge: cookie authentication, the
// upgrade, and the read/write pumps around a chat client session.
package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/chat"
	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/metrics"
	"github.com/tidechat/server/internal/v1/ratelimit"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/types"
)

// Handler owns the /ws endpoint.
type Handler struct {
	hub      *hub.Hub
	store    *store.Store
	limiter  *ratelimit.RateLimiter
	upgrader websocket.Upgrader
}

// NewHandler builds the WebSocket handler. Origins come comma-separated from
// configuration; an empty list admits only the local dev frontend.
func NewHandler(h *hub.Hub, st *store.Store, rl *ratelimit.RateLimiter, cfg *config.Config) *Handler {
	origins := map[string]bool{}
	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = true
		}
	}
	if len(origins) == 0 {
		origins["http://localhost:3000"] = true
	}

	return &Handler{
		hub:     h,
		store:   st,
		limiter: rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || origins[origin]
			},
		},
	}
}

// ServeWs authenticates the cookies and upgrades the connection. No upgrade
// happens on a failed check, so browsers see a plain HTTP error.
func (h *Handler) ServeWs(c *gin.Context) {
	if !h.limiter.CheckWebSocket(c) {
		return
	}

	user, err := h.authenticate(c)
	if err != nil {
		metrics.AuthFailures.Inc()
		c.JSON(errs.StatusCode(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	client := chat.NewClient(user, h.hub, h.store)
	ctx := context.WithValue(context.Background(), logging.UserIDKey, user.ID)
	ctx = context.WithValue(ctx, logging.ClientIDKey, client.ClientID().String())

	go writePump(conn, client.Sender())

	if err := client.Register(ctx); err != nil {
		logging.Error(ctx, "client registration failed", zap.Error(err))
		client.Unregister(ctx)
		conn.Close()
		return
	}
	h.readPump(ctx, conn, client)
}

// authenticate checks the id and sess cookies against the session store. The
// token is not refreshed here; only API calls extend a session's life.
func (h *Handler) authenticate(c *gin.Context) (types.User, error) {
	idCookie, err := c.Cookie("id")
	if err != nil {
		return types.User{}, errs.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(idCookie, 10, 64)
	if err != nil {
		return types.User{}, errs.ErrUnauthorized
	}
	token, err := c.Cookie("sess")
	if err != nil {
		return types.User{}, errs.ErrUnauthorized
	}

	return h.store.VerifySession(c.Request.Context(), userID, token, false)
}
