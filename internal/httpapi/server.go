package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocrd/internal/manager"
	"ocrd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Recognize(ctx context.Context, req types.OcrRequest) (types.OcrResponse, error)
	Warmup(ctx context.Context, languages []string, gpu bool) ([]string, error)
	Health() types.HealthResponse
	Models() types.ModelsResponse
	ClearModels() int
	Stats() types.StatsResponse
	Info() types.InfoResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Info())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ocr", func(w http.ResponseWriter, r *http.Request) {
			var req types.OcrRequest
			if !decodeJSONBody(w, r, &req) {
				return
			}
			lvl := requestLogLevel(r)
			start := time.Now()
			if lvl >= LevelInfo && zlog != nil {
				z := zlog.Info().Str("path", r.URL.Path).Strs("languages", req.Languages).Int("detail", req.Detail)
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("ocr start")
			}
			// Join server base context with request context so shutdown cancels work too.
			joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			resp, err := svc.Recognize(joinedCtx, req)
			if err != nil {
				// If context was canceled (client disconnect), just return.
				if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
					return
				}
				status := statusForError(err)
				writeJSONError(w, status, err.Error())
				if lvl >= LevelInfo && zlog != nil {
					z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						z = z.Str("request_id", rid)
					}
					z.Err(err).Msg("ocr end")
				}
				return
			}
			writeJSON(w, http.StatusOK, resp)
			if lvl >= LevelInfo && zlog != nil {
				z := zlog.Info().Int("status", 200).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("ocr end")
			}
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Health())
		})

		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Models())
		})

		r.Delete("/models", func(w http.ResponseWriter, r *http.Request) {
			n := svc.ClearModels()
			writeJSON(w, http.StatusOK, types.ClearModelsResponse{Status: "cleared", ModelsCleared: n})
		})

		r.Post("/models/warmup", func(w http.ResponseWriter, r *http.Request) {
			var req types.WarmupRequest
			if !decodeJSONBody(w, r, &req) {
				return
			}
			joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			langs, err := svc.Warmup(joinedCtx, req.Languages, req.GPU)
			if err != nil {
				if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
					return
				}
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.WarmupResponse{Status: "success", Languages: langs})
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Stats())
		})

		r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Info())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces the JSON content type and size limit, then decodes
// the body into dst. It writes the error response itself and reports whether
// the handler may proceed.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// An oversized body also surfaces here; 400 avoids leaking limits.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusForError maps well-known manager errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case manager.IsInvalidInput(err):
		return http.StatusBadRequest
	case manager.IsModelBuildTimeout(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
