package httpserver

import (
	"context"
	"net/http"
	"time"

	"arbitrage-detector/internal/infrastructure/logx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	traceIDKey   contextKey = "trace_id"
)

func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(correlation())
	r.Use(recoverer())
	r.Use(accessLog())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.ping != nil {
			if err := s.ping(r.Context()); err != nil {
				logx.L().Warn("http.not_ready", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/opportunities", s.GetOpportunities)
	r.Post("/detections", s.CreateDetection)
	r.Get("/detections/last", s.GetLastDetection)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// correlation propagates X-Request-ID and X-Trace-Id, minting missing ones.
func correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, h := range []struct {
				header string
				key    contextKey
			}{
				{"X-Request-ID", requestIDKey},
				{"X-Trace-Id", traceIDKey},
			} {
				v := r.Header.Get(h.header)
				if v == "" {
					v = uuid.NewString()
				}
				w.Header().Set(h.header, v)
				ctx = context.WithValue(ctx, h.key, v)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func idsFrom(ctx context.Context) (rid, tid string) {
	rid, _ = ctx.Value(requestIDKey).(string)
	tid, _ = ctx.Value(traceIDKey).(string)
	return rid, tid
}

func recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					rid, tid := idsFrom(r.Context())
					logx.L().Error("http.panic_recovered",
						zap.Any("error", rec),
						zap.String("request_id", rid),
						zap.String("trace_id", tid),
					)
					writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseMeter captures status and size for the access log.
type responseMeter struct {
	http.ResponseWriter
	status int
	size   int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(b)
	m.size += n
	return n, err
}

// accessLog logs one line per request, at warn level for 5xx answers.
func accessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(m, r)
			rid, tid := idsFrom(r.Context())
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", m.status),
				zap.Int("bytes", m.size),
				zap.String("request_id", rid),
				zap.String("trace_id", tid),
				zap.Duration("duration", time.Since(start)),
			}
			if m.status >= http.StatusInternalServerError {
				logx.L().Warn("http.request", fields...)
				return
			}
			logx.L().Info("http.request", fields...)
		})
	}
}
