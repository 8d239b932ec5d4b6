package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// NewRouter mounts every endpoint of the service behind request logging and,
// when origins are given, CORS for browser clients.
func NewRouter(ws *WSHandler, st *StatsHandler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", ws.ServeWS)
	router.HandleFunc("/stats", st.ServeStats).Methods(http.MethodGet)
	router.HandleFunc("/history", st.ServeHistory).Methods(http.MethodGet)
	router.HandleFunc("/healthz", ServeHealth).Methods(http.MethodGet)
	router.Use(loggingMiddleware)

	if len(allowedOrigins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(router)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

// statusRecorder captures the response code. It forwards Hijack so websocket
// upgrades keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
