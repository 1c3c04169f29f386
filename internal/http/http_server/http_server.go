package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"chatrelay/api_specs"
	"chatrelay/internal/chat"
	"chatrelay/internal/http/roomhandler"
	"chatrelay/internal/metrics"
	"chatrelay/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

const disposeTimeout = 10 * time.Second

type httpServer struct {
	listenPort uint16
	chatSrv    *chat.Server
	maxLine    int
	ctx        context.Context

	srv *http.Server
	ln  net.Listener
}

// NewHttpServer builds the admin server. ctx bounds the WebSocket sessions
// it hands to chatSrv.
func NewHttpServer(ctx context.Context, listenPort uint16, chatSrv *chat.Server, maxLine int) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		chatSrv:    chatSrv,
		maxLine:    maxLine,
		ctx:        ctx,
	}
	h.srv = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

// Handler returns the routed gin engine.
func (h *httpServer) Handler() http.Handler {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.StaticFS("/api-specs", http.FS(api_specs.FS))

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/healthz", h.health)
	routerEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// websocket endpoint
	routerEngine.GET("/ws", ws.NewHandler(h.ctx, h.chatSrv, h.maxLine).Handle)

	// REST API
	rh := roomhandler.New(h.chatSrv.Registry())
	rh.Register(routerEngine)

	return routerEngine
}

// Start listens and serves until Dispose. It returns http.ErrServerClosed
// after a clean shutdown.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http.listening", zap.String("addr", h.ln.Addr().String()))
	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down, waiting up to 10 s for
// in-flight requests. Hijacked WebSocket connections are not waited on;
// they end with the chat server's own shutdown.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Error("http.dispose", zap.Error(errors.New("shutdown timed out")))
		} else {
			zap.L().Error("http.dispose", zap.Error(err))
		}
		return err
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"  example:"ok"`
	Rooms   int    `json:"rooms"   example:"1"`
	Clients int    `json:"clients" example:"3"`
} // @name HealthResponse

// @Summary		Health check
// @Description	Reports liveness with the number of live rooms and connected clients.
// @Tags			Health
// @Success		200	{object}	healthResponse
// @Router			/healthz [get]
func (h *httpServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Rooms:   h.chatSrv.Registry().Len(),
		Clients: h.chatSrv.Clients().Len(),
	})
}
