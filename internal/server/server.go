// Package server serves transformed modules over HTTP: each request maps
// to one source file under the root, compiles it with the configured
// options, and caches the result in memory and, when enabled, in sqlite.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/alienzhou/esm.sh/internal/compiler"
	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
	"github.com/alienzhou/esm.sh/internal/compiler/source"
	"github.com/alienzhou/esm.sh/internal/config"
	domainerrors "github.com/alienzhou/esm.sh/internal/core/errors"
	"github.com/alienzhou/esm.sh/internal/data/store"
	"github.com/alienzhou/esm.sh/internal/shared/observability"
)

type Server struct {
	cfg    *config.Config
	root   string
	driver *resolver.ImportMap
	store  *store.Store // nil when persistence is disabled
	cache  *lru.Cache[string, store.Build]
	logger *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New builds a server rooted at root. st may be nil.
func New(cfg *config.Config, root string, st *store.Store, logger *slog.Logger) (*Server, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	driver, err := resolver.NewImportMap(
		cfg.Resolver.CDNOrigin, cfg.Resolver.LocalOrigin,
		cfg.Resolver.Imports, cfg.Resolver.Pins, cfg.Resolver.Externals)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, store.Build](cfg.Serve.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		root:     absRoot,
		driver:   driver,
		store:    st,
		cache:    cache,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", s.handleModule)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Serve.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Serve.Timeout,
		WriteTimeout: s.cfg.Serve.Timeout,
	}

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	s.logger.Info("serving modules", "address", s.cfg.Serve.Address, "root", s.root)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()

	status := s.serveModule(w, r)

	observability.RequestsTotal.WithLabelValues(fmt.Sprint(status)).Inc()
	s.logger.Info("request",
		"id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", time.Since(started),
		"remote", r.RemoteAddr,
	)
}

// serveModule handles one module request and returns the response status.
func (s *Server) serveModule(w http.ResponseWriter, r *http.Request) int {
	w.Header().Set("Server", "esmc")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed
	}

	if !s.allow(r) {
		observability.RateLimited.Inc()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return http.StatusTooManyRequests
	}

	modulePath, wantMap := splitMapSuffix(r.URL.Path)
	filePath, ok := s.resolvePath(modulePath)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return http.StatusNotFound
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return http.StatusNotFound
	}

	opts := s.options(r)
	build, err := s.build(r.Context(), modulePath, filePath, src, opts, wantMap)
	if err != nil {
		return s.fail(w, err)
	}

	if wantMap {
		if build.SourceMap == "" {
			http.Error(w, "not found", http.StatusNotFound)
			return http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(build.SourceMap))
		return http.StatusOK
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Esm-Id", build.ID)
	if len(build.Deps) > 0 {
		specs := make([]string, len(build.Deps))
		for i, d := range build.Deps {
			specs[i] = d.Specifier
		}
		w.Header().Set("X-Esm-Deps", strings.Join(specs, ", "))
	}
	if build.SourceMap != "" {
		w.Header().Set("SourceMap", modulePath+".map")
	}
	_, _ = w.Write([]byte(build.Code))
	return http.StatusOK
}

// build returns a cached build or compiles one, filling both cache layers.
func (s *Server) build(ctx context.Context, modulePath, filePath string, src []byte, opts compiler.Options, wantMap bool) (store.Build, error) {
	if wantMap {
		opts.SourceMap = true
	}
	fingerprint := store.Fingerprint(src,
		opts.JSXImportSource, opts.JSXFactory, opts.JSXFragmentFactory,
		fmt.Sprint(opts.DevelopmentMode), fmt.Sprint(opts.SourceMap))
	key := modulePath + "\x00" + fingerprint

	if b, ok := s.cache.Get(key); ok {
		observability.CacheHits.WithLabelValues("memory").Inc()
		return b, nil
	}
	if s.store != nil {
		if b, ok, err := s.store.Load(modulePath, fingerprint); err != nil {
			s.logger.Warn("store lookup failed", "path", modulePath, "error", err)
		} else if ok {
			observability.CacheHits.WithLabelValues("sqlite").Inc()
			s.cache.Add(key, b)
			return b, nil
		}
	}

	res := resolver.New(modulePath, s.driver)
	out, err := compiler.Compile(ctx, filePath, src, source.FromPath(modulePath), res, opts)
	if err != nil {
		return store.Build{}, err
	}

	b := store.Build{
		Path:        modulePath,
		Fingerprint: fingerprint,
		Code:        out.Code,
		SourceMap:   out.SourceMap,
		Deps:        out.Deps,
	}
	if s.store != nil {
		if saved, err := s.store.Save(b); err != nil {
			s.logger.Warn("store save failed", "path", modulePath, "error", err)
		} else {
			b = saved
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.cache.Add(key, b)
	return b, nil
}

// Invalidate drops cached builds for the given module paths. The watcher
// calls this on file changes.
func (s *Server) Invalidate(paths []string) {
	for _, filePath := range paths {
		modulePath, ok := s.modulePathFor(filePath)
		if !ok {
			continue
		}
		for _, key := range s.cache.Keys() {
			if strings.HasPrefix(key, modulePath+"\x00") {
				s.cache.Remove(key)
			}
		}
		if s.store != nil {
			if err := s.store.Invalidate(modulePath); err != nil {
				s.logger.Warn("store invalidation failed", "path", modulePath, "error", err)
			}
		}
	}
}

func (s *Server) options(r *http.Request) compiler.Options {
	opts := compiler.Options{
		JSXImportSource:    s.cfg.Transform.JSXImportSource,
		JSXFactory:         s.cfg.Transform.JSXFactory,
		JSXFragmentFactory: s.cfg.Transform.JSXFragmentFactory,
		DevelopmentMode:    s.cfg.Transform.Development,
		SourceMap:          s.cfg.Transform.SourceMap,
	}
	q := r.URL.Query()
	if q.Has("dev") {
		opts.DevelopmentMode = q.Get("dev") != "false"
	}
	if q.Has("sourcemap") {
		opts.SourceMap = q.Get("sourcemap") != "false"
	}
	return opts
}

// resolvePath maps a request path to a file under the root, rejecting
// escapes.
func (s *Server) resolvePath(modulePath string) (string, bool) {
	cleaned := filepath.Clean("/" + strings.TrimPrefix(modulePath, "/"))
	full := filepath.Join(s.root, cleaned)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", false
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

func (s *Server) modulePathFor(filePath string) (string, bool) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

func (s *Server) allow(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.limitersMu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.Serve.RateLimit), s.cfg.Serve.RateBurst)
		s.limiters[host] = limiter
	}
	s.limitersMu.Unlock()

	return limiter.Allow()
}

func (s *Server) fail(w http.ResponseWriter, err error) int {
	switch {
	case domainerrors.IsCode(err, domainerrors.CodeParse):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return http.StatusBadRequest
	case domainerrors.IsCode(err, domainerrors.CodeResolution):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return http.StatusBadRequest
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
}

func splitMapSuffix(path string) (string, bool) {
	if strings.HasSuffix(path, ".map") {
		return strings.TrimSuffix(path, ".map"), true
	}
	return path, false
}
