package restserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/storemonitor/internal/log"
	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/telemetry"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/chrissnell/storemonitor/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReportGenerator starts reports and computes on-demand store metrics
type ReportGenerator interface {
	Trigger(ctx context.Context) (string, error)
	StoreMetrics(ctx context.Context, storeID string) (types.StoreMetrics, time.Time, error)
}

// Services are the backends the REST server's handlers depend on
type Services struct {
	Generator ReportGenerator
	Reports   storage.ReportRepository
	Health    *storage.HealthManager
	Metrics   *telemetry.Metrics

	// HealthMaxAge is how old a health check may be before the backend counts as unhealthy
	HealthMaxAge time.Duration
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	services   Services
	accessLog  io.Writer
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, services Services, logger *zap.SugaredLogger) (*Controller, error) {
	if services.Generator == nil || services.Reports == nil {
		return nil, fmt.Errorf("REST server requires a report generator and a report repository")
	}
	if services.HealthMaxAge == 0 {
		services.HealthMaxAge = 2 * time.Minute
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		services:   services,
		accessLog:  log.HTTPAccessWriter(),
		logger:     logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.TLSCertPath != "" && c.restConfig.TLSKeyPath != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.TLSCertPath, c.restConfig.TLSKeyPath); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the full HTTP handler: routes wrapped in access logging and panic recovery
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()
	h = handlers.CombinedLoggingHandler(c.accessLog, h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return h
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/trigger_report", c.handlers.TriggerReport).Methods(http.MethodPost)
	router.HandleFunc("/get_report/{report_id}", c.handlers.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/stores/{store_id}/metrics", c.handlers.GetStoreMetrics).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)

	if c.services.Metrics != nil {
		router.Handle("/metrics", c.services.Metrics.Handler()).Methods(http.MethodGet)
	}

	return router
}
