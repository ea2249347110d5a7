package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"dchome/internal/logs"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const requestIDKey ctxKey = iota

const HeaderRequestID = "X-Request-ID"

// RequestID берёт X-Request-ID из запроса или генерирует новый.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Log — логгер с request_id из контекста.
func Log(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(logs.Logger)
	if id := GetRequestID(ctx); id != "" {
		e = e.WithField("request_id", id)
	}
	return e
}

// Recoverer: паника в хендлере -> 500 и стек в лог, процесс живёт.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				Log(r.Context()).WithField("panic", rec).Errorf("panic: %s %s\n%s", r.Method, r.URL.Path, debug.Stack())
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// LoggerMW пишет одну строку на запрос.
func LoggerMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		e := Log(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"bytes":    rec.bytes,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		})
		switch {
		case rec.status >= 500:
			e.Error("http")
		case rec.status >= 400:
			e.Warn("http")
		default:
			// /snapshot опрашивается каждые 2 с, не засоряем info
			e.Debug("http")
		}
	})
}

// NoCache — для ответов, которые фронтенд опрашивает постоянно.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "Mon, 26 Jul 1997 05:00:00 GMT")
		next.ServeHTTP(w, r)
	})
}
