package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
	"github.com/chrissnell/chromatrace/internal/filtration"
	"github.com/chrissnell/chromatrace/internal/log"
	"github.com/chrissnell/chromatrace/internal/plot"
	"github.com/chrissnell/chromatrace/pkg/config"
)

// Analyzer is the part of analysis.Service the HTTP API exposes.
type Analyzer interface {
	RunInfo(ctx context.Context, runID string) (chrom.RunInfo, error)
	ExtractPhases(ctx context.Context, runID string) ([]chrom.Phase, error)
	AnnotateFractions(ctx context.Context, req analysis.FractionRequest) ([]chrom.AnnotatedFraction, error)
	LoadSummary(ctx context.Context, req analysis.LoadRequest) (chrom.LoadSummary, error)
	RunFigure(ctx context.Context, req analysis.FigureRequest) (plot.Figure, error)
	AnalyzeRuns(ctx context.Context, runIDs []string, tmpl analysis.FractionRequest) ([]analysis.RunAnalysis, error)
	OverlayFigure(ctx context.Context, req analysis.OverlayRequest) (plot.Figure, error)
	ComputeFlux(ctx context.Context, req analysis.FluxRequest) (filtration.FluxResult, error)
	FluxFigure(ctx context.Context, req analysis.FluxFigureRequest) (plot.Figure, filtration.FluxResult, error)
	MassBalance(ctx context.Context, experimentID string) (filtration.MassBalance, error)
	SaveMassBalance(ctx context.Context, experimentID string) (filtration.MassBalance, error)
}

// CacheInvalidator drops cached results of one kind.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, kind string) (int, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backends are the collaborators the handlers call into. Cache and Checks
// are optional.
type Backends struct {
	Analyzer Analyzer
	Cache    CacheInvalidator
	Checks   map[string]Pinger
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	backends   Backends
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, backends Backends, logger *zap.SugaredLogger) (*Controller, error) {
	if backends.Analyzer == nil {
		return nil, fmt.Errorf("REST server requires an analyzer")
	}
	logger = log.OrNop(logger)

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = config.DefaultListenAddr
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultHTTPPort)
		rc.Port = config.DefaultHTTPPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		backends:   backends,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// Handler returns the configured router.
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
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
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	h := c.handlers
	router.HandleFunc("/healthz", h.GetHealth).Methods(http.MethodGet)

	// Chromatography runs
	router.HandleFunc("/runs/{id}", h.GetRunInfo).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/phases", h.GetPhases).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/fractions", h.GetFractions).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/load", h.GetLoadSummary).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/figure", h.GetRunFigure).Methods(http.MethodGet)
	router.HandleFunc("/analyze", h.GetAnalyzeRuns).Methods(http.MethodGet)
	router.HandleFunc("/overlay", h.GetOverlayFigure).Methods(http.MethodGet)

	// Viral filtration experiments
	router.HandleFunc("/experiments/{id}/steps/{step}/flux", h.GetFlux).Methods(http.MethodGet)
	router.HandleFunc("/experiments/{id}/steps/{step}/figure", h.GetFluxFigure).Methods(http.MethodGet)
	router.HandleFunc("/experiments/{id}/mass-balance", h.GetMassBalance).Methods(http.MethodGet)
	router.HandleFunc("/experiments/{id}/mass-balance", h.PostMassBalance).Methods(http.MethodPost)

	if c.backends.Cache != nil {
		router.HandleFunc("/cache/{kind}", h.DeleteCache).Methods(http.MethodDelete)
	}

	return router
}
