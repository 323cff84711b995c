package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coinimage/internal/coin_image"
	"coinimage/internal/coin_registry"
	"coinimage/internal/config"
	"coinimage/internal/object_store"
)

const requestIDHeader = "X-Request-Id"

type Handlers struct {
	config  *config.Config
	logger  *zap.Logger
	service *coin_image.Service
	store   object_store.Store
}

func New(config *config.Config, logger *zap.Logger, service *coin_image.Service, store object_store.Store) *Handlers {
	return &Handlers{
		config:  config,
		logger:  logger,
		service: service,
		store:   store,
	}
}

// Routes returns the full handler chain: CORS, request logging, then the mux.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/coin-image", h.HandleCoinImage)
	mux.HandleFunc("/objects/", h.HandleObjects)
	mux.HandleFunc("/healthz", h.HandleHealthz)

	return h.CORSMiddleware(h.RequestLoggingMiddleware(mux))
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		switch {
		case h.config.AllowedOrigin != "":
			allowedOrigin = h.config.AllowedOrigin
		case origin == "":
			allowedOrigin = "*"
		case strings.HasPrefix(origin, "http://"+r.Host) || strings.HasPrefix(origin, "https://"+r.Host):
			allowedOrigin = origin
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type coinImageResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleCoinImage serves GET /api/coin-image?cryptoId=&size=.
// A missing cryptoId is not an error: the service resolves it to the fallback origin image.
func (h *Handlers) HandleCoinImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, coinImageResponse{Error: "method not allowed"})
		return
	}

	query := r.URL.Query()

	size, err := coin_registry.ParseSize(query.Get("size"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, coinImageResponse{Error: err.Error()})
		return
	}

	imageURL := h.service.GetCoinImageURL(r.Context(), query.Get("cryptoId"), size)

	writeJSON(w, http.StatusOK, coinImageResponse{Success: true, ImageURL: imageURL})
}

// HandleObjects serves stored objects for the local backends under /objects/{key}.
func (h *Handlers) HandleObjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/objects/")
	if key == "" || strings.HasSuffix(key, "/") {
		http.NotFound(w, r)
		return
	}

	data, err := h.store.Get(r.Context(), key)
	if err != nil {
		switch object_store.KindOf(err) {
		case object_store.FailureNotFound:
			http.NotFound(w, r)
		case object_store.FailureNotConfigured:
			http.Error(w, "Object store disabled", http.StatusServiceUnavailable)
		default:
			h.logger.Error("Failed to read object", zap.String("key", key), zap.Error(err))
			http.Error(w, "Failed to read object", http.StatusInternalServerError)
		}
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(data), 16) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", object_store.CacheControlImmutable)
	w.Header().Set("Content-Type", object_store.ContentTypePNG)

	// ServeContent answers If-None-Match (lists, weak tags, "*") against the ETag and skips the body for HEAD.
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// X-Real-Ip is trusted as-is; only meaningful behind a proxy that sets it.
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
