package http_server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shopauctions/internal/http/auctionhandler"
	"shopauctions/internal/http/schedulerhandler"
	"shopauctions/internal/scheduler"
	"shopauctions/internal/services/auction"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort     uint16
	srv            http.Server
	ln             net.Listener
	auctionService auction.IAuctionService
	fulfiller      auctionhandler.Fulfiller
	sched          *scheduler.Scheduler
	ctx            context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16,
	auctionService auction.IAuctionService, fulfiller auctionhandler.Fulfiller,
	sched *scheduler.Scheduler) *httpServer {
	return &httpServer{
		listenPort:     listenPort,
		auctionService: auctionService,
		fulfiller:      fulfiller,
		sched:          sched,
		ctx:            ctx,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// REST API
	ah := auctionhandler.New(h.auctionService, h.fulfiller)
	ah.Register(routerEngine)
	sh := schedulerhandler.New(h.ctx, h.sched)
	sh.Register(routerEngine)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		log.Println("shutdown timeout (10 s)")
	}

	return nil
}
