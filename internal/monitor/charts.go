package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lanekeep/internal/db"
	"github.com/banshee-data/lanekeep/internal/httputil"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxChartFrames bounds the per-frame series so a long session still
// renders.
const maxChartFrames = 20000

var allStates = []l5state.DrivingState{
	l5state.WithinLanes,
	l5state.ChangingLanes,
	l5state.LeftOnly,
	l5state.RightOnly,
	l5state.NoMarkings,
}

// handleDrivingStateChart renders the state histogram and the per-frame
// state trace of one session.
//
//	session (optional; defaults to the session being recorded)
func (ws *WebServer) handleDrivingStateChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database")
		return
	}
	id := ws.sessionParam(r)
	if id == "" {
		httputil.BadRequest(w, "missing 'session' parameter")
		return
	}
	if _, err := ws.db.GetSession(id); errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, "session not found")
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	hist, err := ws.db.StateHistogram(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	results, err := ws.db.ListFrameResults(id, 0, maxChartFrames)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	names := make([]string, len(allStates))
	counts := make([]opts.BarData, len(allStates))
	for i, s := range allStates {
		names[i] = s.String()
		counts[i] = opts.BarData{Value: hist[s]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Driving state", Subtitle: "session " + id}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("frames", counts,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	frames := make([]string, len(results))
	trace := make([]opts.LineData, len(results))
	giveWay := make([]opts.LineData, len(results))
	for i, fr := range results {
		frames[i] = strconv.FormatUint(fr.FrameNumber, 10)
		trace[i] = opts.LineData{Value: int(fr.State)}
		gw := 0
		if fr.GiveWay {
			gw = 1
		}
		giveWay[i] = opts.LineData{Value: gw}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "State by frame", Subtitle: "0 within lanes, 1 changing, 2 left only, 3 right only, 4 none"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: len(allStates) - 1}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(frames).
		AddSeries("state", trace).
		AddSeries("give way", giveWay)

	ws.renderPage(w, bar, line)
}

// handleFrameTimesChart renders per-frame processing time. Stored times are
// used when a session is known; otherwise the live tracker's.
func (ws *WebServer) handleFrameTimesChart(w http.ResponseWriter, r *http.Request) {
	var (
		times    []float64
		subtitle string
	)
	id := ws.sessionParam(r)
	switch {
	case ws.db != nil && id != "":
		var err error
		times, err = ws.db.ListFrameTimes(id)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		subtitle = "session " + id
	case ws.runner != nil && ws.runner.Perf() != nil:
		times = ws.runner.Perf().FrameTimes()
		subtitle = "live"
	default:
		httputil.ServiceUnavailable(w, "no frame times available")
		return
	}
	if len(times) > maxChartFrames {
		times = times[len(times)-maxChartFrames:]
	}

	x := make([]string, len(times))
	y := make([]opts.LineData, len(times))
	for i, ms := range times {
		x[i] = strconv.Itoa(i + 1)
		y[i] = opts.LineData{Value: ms}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Frame time (ms)", Subtitle: fmt.Sprintf("%s, %d frames", subtitle, len(times))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries("frame time", y)

	ws.renderPage(w, line)
}

func (ws *WebServer) renderPage(w http.ResponseWriter, cs ...components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(cs...)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
