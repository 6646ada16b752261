// Package diag provides the HTTP diagnostic server for the session daemon.
// It implements read-only endpoints for version information, health checks,
// and a snapshot of the active session table. The package supports CORS
// handling and middleware integration for logging and error handling.
package diag

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/common/httpx"
	"github.com/pingmark/pingmark/internal/common/logtrace"
	"github.com/pingmark/pingmark/internal/common/middleware"
	"github.com/pingmark/pingmark/internal/sessiond/config"
	"github.com/pingmark/pingmark/internal/sessiond/server"
	"github.com/pingmark/pingmark/internal/sessiond/session"
)

// Version is the diagnostic API version.
const Version = "0.1.0"

// DiagServer provides the HTTP diagnostic server for the session daemon.
// Manages routing, middleware, and endpoint handling for the read-only
// diagnostic surface. The session table is never mutated through it.
type DiagServer struct {
	Router  *chi.Mux // HTTP router for request handling
	store   *session.Store
	workers func() int
}

// CreateNewServer creates a new DiagServer instance over the given session
// store. workers may be nil; when set it reports the number of in-flight
// datagram handlers on the readiness endpoint.
// Returns the server instance and any error encountered during creation.
func CreateNewServer(store *session.Store, workers func() int) (*DiagServer, error) {
	if store == nil {
		return nil, fmt.Errorf("diag server requires a session store")
	}
	s := &DiagServer{
		store:   store,
		workers: workers,
	}
	s.Router = chi.NewRouter()
	return s, nil
}

// MountHandlers sets up all HTTP routes and middleware for the server.
// Configures logging, panic handling, CORS, and resource endpoints.
func (s *DiagServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.SetTimeout(10 * time.Second))
	if config.Config().Diag.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.Router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrReqMethodNotSupported().Send(w)
	})
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in diag router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

// mountResourceHandlers registers all resource endpoints on the router.
func (s *DiagServer) mountResourceHandlers(r chi.Router) {
	r.Get("/sessions", s.getSessions)
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

// GetVersionRsp represents the response for version information.
// Contains server and API version details.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`        // server version string
	ApiVersion    string `json:"apiVersion"`           // diagnostic API version string
	Compatible    *bool  `json:"compatible,omitempty"` // whether the reported client version is supported
}

// getVersion handles version information requests. Returns server and API
// version information; when the caller reports its own version via the
// client query parameter, the response also says whether that version is
// compatible with this server.
func (s *DiagServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Pingmark Session Server: " + server.Version,
		ApiVersion:    Version,
	}
	if client := r.URL.Query().Get("client"); client != "" {
		compatible := server.IsVersionCompatible(client)
		rsp.Compatible = &compatible
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// getReadiness handles health check requests.
// Returns readiness status for load balancer and monitoring systems along
// with the current session count and, when wired, in-flight handler count.
func (s *DiagServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	rsp := map[string]any{
		"status":         "ready",
		"activeSessions": s.store.Len(),
	}
	if s.workers != nil {
		rsp["activeWorkers"] = s.workers()
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

// SessionInfo describes one live session in a sessions snapshot.
type SessionInfo struct {
	SessionID  string            `json:"sessionId"`
	RemoteAddr string            `json:"remoteAddr"`
	CreatedAt  time.Time         `json:"createdAt"`
	AgeSeconds float64           `json:"ageSeconds"`
	Data       map[string]string `json:"data,omitempty"`
}

// GetSessionsRsp represents the response for a sessions snapshot.
type GetSessionsRsp struct {
	Count    int           `json:"count"`
	Sessions []SessionInfo `json:"sessions"`
}

// getSessions handles session snapshot requests. Sessions are returned in
// creation order; an optional limit query parameter caps the list length.
// The snapshot is taken under the store lock so it is internally consistent,
// but sessions may expire or close the moment it is released.
func (s *DiagServer) getSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log.Ctx(ctx).Debug().Msg("ListSessions")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.ErrInvalidRequest("limit must be a non-negative integer").Send(w)
			return
		}
		limit = n
	}

	sessions := s.store.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	now := time.Now()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			SessionID:  sess.ID,
			RemoteAddr: sess.RemoteAddr,
			CreatedAt:  sess.CreatedAt,
			AgeSeconds: now.Sub(sess.CreatedAt).Seconds(),
			Data:       sess.Data,
		})
	}
	httpx.SendJsonRsp(ctx, w, http.StatusOK, &GetSessionsRsp{
		Count:    len(infos),
		Sessions: infos,
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
// Configures allowed origins, methods, headers, and credentials handling.
func (s *DiagServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, //TODO: Change this to specific origin
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Link", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
