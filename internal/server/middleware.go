package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dbayan/storefront/internal/audit"
)

// gateMiddleware rejects storefront traffic while a shutdown window is
// active. Admin endpoints stay reachable so the window can be managed.
func (s *Server) gateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.window.IsActive() {
			respondError(w, http.StatusServiceUnavailable, "Site is temporarily closed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	buffer     bytes.Buffer
}

func newResponseWriterWrapper(w http.ResponseWriter) *responseWriterWrapper {
	return &responseWriterWrapper{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	w.buffer.Write(b)
	return w.ResponseWriter.Write(b)
}

// audited names the handlers whose requests are worth an audit entry; the
// read-only and streaming endpoints are skipped.
var audited = map[string]string{
	"POST /order":            "handleOrder",
	"POST /update-stock":     "handleUpdateStock",
	"DELETE /update-stock":   "handleDeleteStock",
	"POST /ban-email":        "handleBanEmail",
	"POST /shutdown-site":    "handleShutdownSite",
	"POST /end-sessions":     "handleEndSessions",
	"POST /end-sessions-20m": "handleEndIdleSessions",
	"POST /clear-carts":      "handleClearCarts",
}

func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := audited[r.Method+" "+r.URL.Path]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		entry := audit.Entry{
			ID:        uuid.New(),
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   handler,
		}

		var requestBody []byte
		if r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
			entry.Actor = actorFromBody(requestBody)
		}

		wrw := newResponseWriterWrapper(w)
		next.ServeHTTP(wrw, r)

		entry.Status = wrw.statusCode
		entry.Response = wrw.buffer.String()

		s.auditor.Record(entry)
	})
}

func actorFromBody(body []byte) string {
	var probe struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Email
}
