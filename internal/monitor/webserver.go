// Package monitor serves the live detector state, stored sessions and
// debugging charts over HTTP, and reports pipeline health over gRPC.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/lanekeep/internal/db"
	"github.com/banshee-data/lanekeep/internal/httputil"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/network"
	"github.com/banshee-data/lanekeep/internal/security"
	"github.com/banshee-data/lanekeep/internal/serialmux"
	"github.com/banshee-data/lanekeep/internal/version"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 500
	defaultResultLimit  = 200
	maxResultLimit      = 5000
)

// WebServer handles the HTTP interface for monitoring the detector.
type WebServer struct {
	address string
	runner  *pipeline.Runner
	db      *db.DB
	feed    *network.FeedStats
	display *serialmux.DisplayMonitor
	serial  serialmux.SerialMuxInterface
	session string
	plots   string
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server. Every
// field except Address and Runner may be nil; routes that need a missing
// component answer 503.
type WebServerConfig struct {
	Address   string
	Runner    *pipeline.Runner
	DB        *db.DB
	Feed      *network.FeedStats
	Display   *serialmux.DisplayMonitor
	Serial    serialmux.SerialMuxInterface
	SessionID string
	// PlotsDir is where PerfPlotter run directories are written. Empty
	// disables /plots/.
	PlotsDir string
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		runner:  config.Runner,
		db:      config.DB,
		feed:    config.Feed,
		display: config.Display,
		serial:  config.Serial,
		session: config.SessionID,
		plots:   config.PlotsDir,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[http] listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[http] warning: shutdown: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[http] warning: force close: %v", err)
		}
	}
	monitoring.Logf("[http] stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.HandleFunc("GET /api/state", ws.handleState)
	mux.HandleFunc("GET /api/state/overlay.png", ws.handleOverlay)
	mux.HandleFunc("GET /api/perf", ws.handlePerf)
	mux.HandleFunc("GET /api/feed", ws.handleFeed)
	mux.HandleFunc("GET /api/display", ws.handleDisplay)
	mux.HandleFunc("GET /api/sessions", ws.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", ws.handleSession)
	mux.HandleFunc("GET /api/sessions/{id}/results", ws.handleSessionResults)
	mux.HandleFunc("GET /charts/driving-state", ws.handleDrivingStateChart)
	mux.HandleFunc("GET /charts/frame-times", ws.handleFrameTimesChart)
	mux.HandleFunc("GET /plots/{path...}", ws.handlePlot)

	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}
	if ws.serial != nil {
		ws.serial.AttachAdminRoutes(mux)
	}
	return mux
}

// queryInt reads a positive integer parameter, falling back to def and
// capping at max.
func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid '" + name + "' parameter")
	}
	if v > max {
		v = max
	}
	return v, nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": version.String(),
	}
	if ws.runner != nil {
		resp["frames"] = ws.runner.Frames()
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if ws.runner == nil {
		httputil.ServiceUnavailable(w, "detector not running")
		return
	}
	res, ok := ws.runner.Latest()
	if !ok {
		httputil.NotFound(w, "no frames processed yet")
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (ws *WebServer) handlePerf(w http.ResponseWriter, r *http.Request) {
	if ws.runner == nil || ws.runner.Perf() == nil {
		httputil.ServiceUnavailable(w, "frame timing disabled")
		return
	}
	p := ws.runner.Perf()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"live":    p.Snapshot(),
		"summary": p.Summary(),
	})
}

func (ws *WebServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if ws.feed == nil {
		httputil.ServiceUnavailable(w, "no network feed")
		return
	}
	snap := ws.feed.Latest()
	if snap == nil {
		httputil.NotFound(w, "no feed statistics yet")
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (ws *WebServer) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if ws.display == nil {
		httputil.ServiceUnavailable(w, "guidance display disabled")
		return
	}
	httputil.WriteJSONOK(w, ws.display.Snapshot())
}

func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database")
		return
	}
	limit, err := queryInt(r, "limit", defaultSessionLimit, maxSessionLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sessions, err := ws.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"current":  ws.session,
		"sessions": sessions,
	})
}

func (ws *WebServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database")
		return
	}
	sess, err := ws.db.GetSession(r.PathValue("id"))
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, "session not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	hist, err := ws.db.StateHistogram(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	states := make(map[string]int, len(hist))
	for state, n := range hist {
		states[state.String()] = n
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session": sess,
		"states":  states,
	})
}

func (ws *WebServer) handleSessionResults(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database")
		return
	}
	id := r.PathValue("id")
	if _, err := ws.db.GetSession(id); errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, "session not found")
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var from uint64
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid 'from' parameter")
			return
		}
		from = v
	}
	limit, err := queryInt(r, "limit", defaultResultLimit, maxResultLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	results, err := ws.db.ListFrameResults(id, from, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if results == nil {
		results = []db.FrameResult{}
	}
	httputil.WriteJSONOK(w, results)
}

// sessionParam returns the session query parameter, defaulting to the
// session currently being recorded.
func (ws *WebServer) sessionParam(r *http.Request) string {
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}
	return ws.session
}

// handlePlot serves a PNG written by PerfPlotter. Paths are resolved
// under the plots directory and may not escape it.
func (ws *WebServer) handlePlot(w http.ResponseWriter, r *http.Request) {
	if ws.plots == "" {
		httputil.ServiceUnavailable(w, "plots disabled")
		return
	}
	rel := r.PathValue("path")
	if filepath.Ext(rel) != ".png" {
		httputil.NotFound(w, "not a plot")
		return
	}
	path := filepath.Join(ws.plots, filepath.FromSlash(rel))
	if err := security.ValidatePathWithinDirectory(path, ws.plots); err != nil {
		httputil.BadRequest(w, "invalid plot path")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
