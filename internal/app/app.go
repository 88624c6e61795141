package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/batch"
	"github.com/hamed0406/sitecheck/internal/config"
	"github.com/hamed0406/sitecheck/internal/httpapi"
	apimw "github.com/hamed0406/sitecheck/internal/httpapi/middleware"
	"github.com/hamed0406/sitecheck/internal/metrics"
	"github.com/hamed0406/sitecheck/internal/probe"
	"github.com/hamed0406/sitecheck/internal/repo"
)

// Module wires everything the API daemon needs on top of a supplied
// *config.Config and *zap.Logger.
var Module = fx.Options(
	metrics.Module,
	fx.Provide(
		newStore,
		newProber,
		newDispatcher,
		newRunner,
		newAPI,
		NewHTTPServer,
	),
	fx.Invoke(registerHooks),
)

func New(cfg *config.Config, logger *zap.Logger) *fx.App {
	return fx.New(Options(cfg, logger)...)
}

// Options is the full option list, shared with fxtest.
func Options(cfg *config.Config, logger *zap.Logger) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, logger),
		Module,
		fx.Invoke(func(*HTTPServer) {}),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.StartTimeout(30 * time.Second),
		fx.StopTimeout(30 * time.Second),
	}
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (repo.BatchStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	store, closeFn, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeFn()
			return nil
		},
	})
	return store, nil
}

func newProber(cfg *config.Config) probe.Prober {
	p := probe.NewHTTPProber(cfg.Timeout)
	p.UserAgent = cfg.UserAgent
	return p
}

func newDispatcher(p probe.Prober, cfg *config.Config, log *zap.Logger, m batch.Metrics) *batch.Dispatcher {
	return batch.NewDispatcher(p, cfg.Workers, log, m)
}

func newRunner(d *batch.Dispatcher, store repo.BatchStore, cfg *config.Config, log *zap.Logger, m batch.Metrics) *batch.Runner {
	return batch.NewRunner(log, d, store, m, cfg.Timeout, cfg.Ordered)
}

func newAPI(r *batch.Runner, store repo.BatchStore, m *metrics.Collector, cfg *config.Config, log *zap.Logger) *httpapi.Server {
	s := httpapi.NewServer(log, r, store, m.Handler())
	s.AllowedOrigins = cfg.AllowedOrigins
	return s
}

// HTTPServer owns the listener of the API daemon.
type HTTPServer struct {
	srv *http.Server
	ln  net.Listener
	log *zap.Logger
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, api *httpapi.Server, log *zap.Logger) *HTTPServer {
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	lim := httpapi.Limits{
		PublicRPM:   cfg.PublicRPM,
		PublicBurst: cfg.PublicBurst,
		AdminRPM:    cfg.AdminRPM,
		AdminBurst:  cfg.AdminBurst,
	}
	h := &HTTPServer{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Router(keys, lim),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
	lc.Append(fx.Hook{OnStart: h.start, OnStop: h.stop})
	return h
}

// Addr is the bound address once started; useful with port 0.
func (h *HTTPServer) Addr() string {
	if h.ln == nil {
		return h.srv.Addr
	}
	return h.ln.Addr().String()
}

func (h *HTTPServer) start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.srv.Addr, err)
	}
	h.ln = ln
	h.log.Info("api_listen", zap.String("addr", h.Addr()))
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("api_serve_error", zap.Error(err))
		}
	}()
	return nil
}

func (h *HTTPServer) stop(ctx context.Context) error {
	h.log.Info("api_shutdown")
	return h.srv.Shutdown(ctx)
}

type hookParams struct {
	fx.In

	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
	Config    *config.Config
}

func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting application",
				zap.Duration("timeout", p.Config.Timeout),
				zap.Int("workers", p.Config.Workers),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping application")
			return nil
		},
	})
}
