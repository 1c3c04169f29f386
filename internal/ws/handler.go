package ws

import (
	"context"
	"net/http"

	"chatrelay/internal/chat"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	ctx      context.Context
	srv      *chat.Server
	maxLine  int
	upgrader websocket.Upgrader
}

// NewHandler serves chat sessions on srv. Sessions inherit ctx rather than
// the request context, which stays live for as long as the handler runs.
func NewHandler(ctx context.Context, srv *chat.Server, maxLine int) *Handler {
	return &Handler{
		ctx:     ctx,
		srv:     srv,
		maxLine: maxLine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
}

// Handle is the gin entry point for GET /ws. It blocks for the session.
func (h *Handler) Handle(ginCtx *gin.Context) {
	raw, err := h.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	h.srv.ServeTransport(h.ctx, NewTransport(raw, h.maxLine))
}
