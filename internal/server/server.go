package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/metrics"
	"github.com/ruralcare/carenav/internal/recognition"
	"github.com/ruralcare/carenav/internal/session"
	"github.com/ruralcare/carenav/internal/validation"
)

// ModelSource serves the shared recognition model bundle.
type ModelSource interface {
	Load(ctx context.Context) (recognition.ModelInfo, error)
	Loaded() (recognition.ModelInfo, bool)
}

// Deps are everything the HTTP layer talks to.
type Deps struct {
	Sessions     *session.Manager
	Validator    *validation.Validator
	Model        ModelSource
	Listen       recognition.ListenConfig
	StaticDir    string
	Environment  string
	SessionStore string
	// ModelTimeout bounds a recognizer load triggered by a request.
	ModelTimeout time.Duration
	Logger       logger.Logger
}

// pageRoutes are the site's client-side pages; each serves index.html.
var pageRoutes = []string{"/symptom-checker", "/facility-finder", "/about", "/resources"}

// NewHandler builds the routed handler.
func NewHandler(deps Deps) http.Handler {
	h := NewHandlers(deps)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/finder/filter", h.HandleSetFilter)
	mux.HandleFunc("POST /api/sessions/{id}/finder/search", h.HandleZipSearch)
	mux.HandleFunc("POST /api/sessions/{id}/finder/apply", h.HandleApplyFilters)
	mux.HandleFunc("POST /api/sessions/{id}/finder/select", h.HandleSelect)
	mux.HandleFunc("DELETE /api/sessions/{id}/finder/select", h.HandleClearSelection)
	mux.HandleFunc("POST /api/sessions/{id}/symptoms/start", h.HandleStartListening)
	mux.HandleFunc("POST /api/sessions/{id}/symptoms/stop", h.HandleStopListening)
	mux.HandleFunc("POST /api/sessions/{id}/symptoms/scores", h.HandleScores)
	mux.HandleFunc("POST /api/sessions/{id}/ui", h.HandleUI)
	mux.HandleFunc("GET /api/specialists", h.HandleSpecialists)
	mux.HandleFunc("GET /api/model", h.HandleModel)
	mux.HandleFunc("GET /api/status", h.HandleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	index := filepath.Join(deps.StaticDir, "index.html")
	for _, route := range pageRoutes {
		mux.HandleFunc("GET "+route, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, index)
		})
	}
	mux.Handle("/", http.FileServer(http.Dir(deps.StaticDir)))

	return instrument(mux, deps.Logger)
}

func New(port string, deps Deps) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	deps.Logger.Info("server listening", map[string]interface{}{"url": "http://localhost:" + port})
	return srv
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument logs and counts every request by its matched route.
func instrument(mux *http.ServeMux, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		mux.ServeHTTP(rec, r)

		_, pattern := mux.Handler(r)
		switch pattern {
		case "":
			pattern = "unmatched"
		case "/":
			pattern = "static"
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())

		log.Debug("request served", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
	})
}
