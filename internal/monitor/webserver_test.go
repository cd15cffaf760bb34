package monitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/db"
	"github.com/banshee-data/lanekeep/internal/fsutil"
	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/perf"
	"github.com/banshee-data/lanekeep/internal/testutil"
	"github.com/banshee-data/lanekeep/internal/timeutil"
	"github.com/banshee-data/lanekeep/internal/version"
)

var (
	leftLine  = l1segments.Seg(650, 820, 750, 720)
	rightLine = l1segments.Seg(1270, 820, 1170, 720)
)

type fixture struct {
	ws      *WebServer
	runner  *pipeline.Runner
	db      *db.DB
	session string
	clock   *timeutil.MockClock
}

func newFixture(t *testing.T, withDB bool) *fixture {
	t.Helper()
	det, err := pipeline.NewDetector(pipeline.DefaultConfig())
	require.NoError(t, err)
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	f := &fixture{
		runner: pipeline.NewRunner(det, perf.NewTracker(clock)),
		clock:  clock,
	}
	cfg := WebServerConfig{Address: "127.0.0.1:0", Runner: f.runner}
	if withDB {
		store, err := db.NewDB(filepath.Join(t.TempDir(), "monitor.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		sess, err := store.CreateSession("test", clock.Now(), nil)
		require.NoError(t, err)
		f.db = store
		f.session = sess.ID
		f.runner.AddSink(store.NewRecorder(sess.ID, clock))
		cfg.DB = store
		cfg.SessionID = sess.ID
	}
	f.ws = NewWebServer(cfg)
	return f
}

func (f *fixture) feed(n int) {
	for i := 1; i <= n; i++ {
		f.runner.HandleFrame(l1segments.Frame{Number: uint64(i), Lines: []l1segments.LineSegment{leftLine, rightLine}})
		f.clock.Advance(40 * time.Millisecond)
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(f.ws.Handler(), testutil.NewLocalRequest(http.MethodGet, path, ""))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	f.feed(2)

	w := f.get(t, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["frames"])
	assert.Equal(t, version.String(), body["version"])
}

func TestStateBeforeAndAfterFrames(t *testing.T) {
	f := newFixture(t, false)

	w := f.get(t, "/api/state")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.feed(3)
	w = f.get(t, "/api/state")
	require.Equal(t, http.StatusOK, w.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, uint64(3), res.Frame)
	assert.Equal(t, l5state.WithinLanes, res.State)
	assert.NotNil(t, res.Turning)
}

func TestPerf(t *testing.T) {
	f := newFixture(t, false)
	f.feed(4)

	w := f.get(t, "/api/perf")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Live    perf.Snapshot `json:"live"`
		Summary perf.Summary  `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Live.Frames)
	assert.Equal(t, 4, body.Summary.Frames)
}

func TestRoutesWithoutOptionalComponents(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{
		"/api/feed",
		"/api/display",
		"/api/sessions",
		"/api/sessions/abc",
		"/api/sessions/abc/results",
		"/charts/driving-state",
		"/plots/run/frame_times.png",
	} {
		t.Run(path, func(t *testing.T) {
			w := f.get(t, path)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, false)
	w := testutil.Serve(f.ws.Handler(), testutil.NewLocalRequest(http.MethodPost, "/api/state", ""))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestSessions(t *testing.T) {
	f := newFixture(t, true)
	f.feed(5)

	w := f.get(t, "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Current  string       `json:"current"`
		Sessions []db.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, f.session, list.Current)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, f.session, list.Sessions[0].ID)

	w = f.get(t, "/api/sessions/"+f.session)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Session db.Session     `json:"session"`
		States  map[string]int `json:"states"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "test", detail.Session.Source)
	assert.Equal(t, map[string]int{"within_lanes": 5}, detail.States)

	w = f.get(t, "/api/sessions/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.get(t, "/api/sessions?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionResults(t *testing.T) {
	f := newFixture(t, true)
	f.feed(5)

	w := f.get(t, "/api/sessions/"+f.session+"/results?from=3&limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []db.FrameResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(3), rows[0].FrameNumber)
	assert.Equal(t, uint64(4), rows[1].FrameNumber)

	w = f.get(t, "/api/sessions/"+f.session+"/results?from=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.get(t, "/api/sessions/missing/results")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.get(t, "/api/sessions/"+f.session+"/results?from=100")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestCharts(t *testing.T) {
	f := newFixture(t, true)
	f.feed(5)

	for _, path := range []string{"/charts/driving-state", "/charts/frame-times"} {
		t.Run(path, func(t *testing.T) {
			w := f.get(t, path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
			assert.Contains(t, w.Body.String(), "echarts")
		})
	}

	w := f.get(t, "/charts/driving-state?session=missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFrameTimesChartLiveFallback(t *testing.T) {
	f := newFixture(t, false)
	f.feed(2)

	w := f.get(t, "/charts/frame-times")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "live, 2 frames")
}

func TestDebugRoutesMounted(t *testing.T) {
	f := newFixture(t, true)
	w := f.get(t, "/debug/db-stats")
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

func TestPlots(t *testing.T) {
	plotsDir := t.TempDir()
	runDir := filepath.Join(plotsDir, "20261019_101500")

	pp := NewPerfPlotter(fsutil.OSFileSystem{})
	pp.HandleResult(pipeline.Result{Frame: 1, ProcessingMs: 2, State: l5state.WithinLanes})
	pp.HandleResult(pipeline.Result{Frame: 2, ProcessingMs: 3, State: l5state.WithinLanes})
	_, err := pp.GeneratePlots(runDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "notes.txt"), []byte("x"), 0o644))

	ws := NewWebServer(WebServerConfig{Address: "127.0.0.1:0", PlotsDir: plotsDir})
	get := func(path string) *httptest.ResponseRecorder {
		return testutil.Serve(ws.Handler(), testutil.NewLocalRequest(http.MethodGet, path, ""))
	}

	w := get("/plots/20261019_101500/frame_times.png")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngMagic))

	w = get("/plots/20261019_101500/missing.png")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = get("/plots/20261019_101500/notes.txt")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	// The mux cleans ".." out of request paths, so build the request by hand.
	req := testutil.NewLocalRequest(http.MethodGet, "/plots/x.png", "")
	req.URL.Path = "/plots/../../etc/x.png"
	req.SetPathValue("path", "../../etc/x.png")
	w = httptest.NewRecorder()
	ws.handlePlot(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}
