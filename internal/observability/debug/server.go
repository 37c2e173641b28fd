// Package debug serves the optional operator HTTP endpoints: Prometheus
// metrics, a liveness probe and net/http/pprof.
//
// Security:
//   - Prefer binding to localhost (default).
//   - A non-loopback address needs Token or AllowInsecure.
package debug

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statuswatch/internal/config"
	rtsup "statuswatch/internal/runtime/supervisor"
	"statuswatch/pkg/logx"
)

type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool
}

// FromConfig maps the debug config section.
func FromConfig(c *config.DebugConfig) Config {
	if c == nil {
		return Config{Addr: config.DefaultDebugAddr}
	}
	return Config{Addr: c.DebugAddr(), Token: strings.TrimSpace(c.Token), AllowInsecure: c.AllowInsecure, Pprof: c.Pprof}
}

type Server struct {
	cfg      Config
	log      logx.Logger
	gatherer prometheus.Gatherer
	// health returns nil while the process is healthy.
	health func() error

	mu  sync.Mutex
	sup *rtsup.Supervisor
	ln  net.Listener
}

func New(cfg Config, g prometheus.Gatherer, health func() error, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = config.DefaultDebugAddr
	}
	return &Server{cfg: cfg, log: log, gatherer: g, health: health}
}

// Handler returns the routed, authenticated mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			if err := s.health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", hpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	}
	return withAuth(s.cfg.Token, mux)
}

// Start listens and serves in the background. The listener is bound
// synchronously so address errors surface here.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}

	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !config.IsLoopbackAddr(s.cfg.Addr) {
		return errors.New("debug server refused to start: non-loopback addr requires token or allow_insecure")
	}
	if s.cfg.AllowInsecure && s.cfg.Token == "" && !config.IsLoopbackAddr(s.cfg.Addr) {
		s.log.Warn("debug server running without token on non-loopback addr (insecure)", logx.String("addr", s.cfg.Addr))
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	s.sup.Go("http.serve", func(c context.Context) error {
		go func() {
			<-c.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	s.log.Info("debug server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", s.cfg.Pprof),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.ln = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("debug server stopped")
	return err
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
