package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/render"
	"ledger/internal/report"
	appweb "ledger/web"
)

const (
	viewCacheSize = 100
	viewCacheTTL  = 5 * time.Minute
)

// Server serves the classified dataset as an interactive report. The dataset
// is read-only after startup, so every handler can share it without locking.
type Server struct {
	http.Server

	dataset   *core.Dataset
	meta      render.Meta
	templates *template.Template
	logger    *applog.Logger

	rateLimiter *rateLimiter

	// Rendered view JSON keyed by canonical filter encoding plus verbosity.
	viewCache *cache.LRUCache[[]byte]
	cleanup   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, dataset *core.Dataset, meta render.Meta, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		dataset:     dataset,
		meta:        meta,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		rateLimiter: newRateLimiter(),
		viewCache:   cache.NewLRUCache[[]byte](viewCacheSize, viewCacheTTL),
		cleanup:     cache.NewManager(),
	}

	s.cleanup.Register(s.viewCache)
	s.cleanup.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("failed to mount embedded static files", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.withSecurity(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/api/dataset", s.withSecurity(s.handleDataset))
	mux.HandleFunc("/api/view", s.withSecurity(s.handleView))

	return s
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cleanup.Stop()
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withSecurity adds security headers, rate limiting and request logging.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientAddr(r)

		if !s.rateLimiter.allow(clientIP) {
			s.logger.Warn("rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.Info("request",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldQuery, r.URL.RawQuery,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if first, _, ok := strings.Cut(ip, ","); ok {
			return strings.TrimSpace(first)
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Year      int
		NumMonths int
		Sources   string
	}{
		Year:      s.meta.Year,
		NumMonths: s.meta.NumMonths,
		Sources:   strings.Join(s.meta.Sources, ", "),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "report.html", data); err != nil {
		s.logger.Error("report template failed", applog.FieldError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleDataset returns the full unfiltered report document. The browser
// filters it client side; the fragment codec keeps the URL shareable.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, nil, render.VerbosityFull)
}

// handleView returns the report document for an encoded filter set. Malformed
// filter terms are dropped; their count is reported in a response header.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	filters, rejects := report.DecodeFilters(r.URL.Query().Get("filters"))
	if len(rejects) > 0 {
		for _, rej := range rejects {
			s.logger.Warn("dropped filter term", applog.FieldError, rej)
		}
		w.Header().Set("X-Dropped-Filters", strconv.Itoa(len(rejects)))
	}

	verbosity := render.VerbosityQuiet
	if v := r.URL.Query().Get("v"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < render.VerbosityQuiet || n > render.VerbosityFull {
			http.Error(w, "invalid verbosity", http.StatusBadRequest)
			return
		}
		verbosity = n
	}

	s.serveView(w, r, filters, verbosity)
}

func (s *Server) serveView(w http.ResponseWriter, r *http.Request, filters []report.Filter, verbosity int) {
	key := report.EncodeFilters(filters) + "|v=" + strconv.Itoa(verbosity)

	if body, ok := s.viewCache.Get(key); ok {
		writeJSON(w, body)
		return
	}

	view := report.Apply(s.dataset, filters)
	body, err := render.JSON(view, s.meta, nil, verbosity)
	if err != nil {
		s.logger.Error("view render failed", applog.FieldError, err, applog.FieldFilters, key)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	s.viewCache.Set(key, body)
	writeJSON(w, body)
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}
