package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/lanekeep/internal/config"
	"github.com/banshee-data/lanekeep/internal/db"
	"github.com/banshee-data/lanekeep/internal/extract"
	"github.com/banshee-data/lanekeep/internal/fsutil"
	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/monitor"
	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/network"
	"github.com/banshee-data/lanekeep/internal/perf"
	"github.com/banshee-data/lanekeep/internal/security"
	"github.com/banshee-data/lanekeep/internal/serialmux"
	"github.com/banshee-data/lanekeep/internal/timeutil"
	"github.com/banshee-data/lanekeep/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tuning config JSON (defaults built in)")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (disabled if empty)")
	udpListen   = flag.String("udp", ":5600", "UDP address for the line-segment feed")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	pcapFile    = flag.String("pcap", "", "Replay frames from a pcap/pcapng capture instead of listening")
	pcapPort    = flag.Int("pcap-port", 5600, "UDP destination port to replay from the capture (0 for any)")
	videoFile   = flag.String("video", "", "Extract frames from a video file (requires a gocv build)")
	dbPath      = flag.String("db", "lanekeep.db", "SQLite database path (empty disables storage)")
	forwardAddr = flag.String("forward", "", "Forward each result as JSON to this UDP host:port")
	serialPort  = flag.String("serial-port", "", "Guidance display serial port (disabled if empty)")
	serialBaud  = flag.Int("serial-baud", serialmux.DefaultBaudRate, "Guidance display baud rate")
	plotsDir    = flag.String("plots", "", "Write frame-time and steering plots here at exit")
	stallAfter  = flag.Duration("stall-timeout", 5*time.Second, "Report NOT_SERVING after this long without frames")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		path := os.Getenv("LANEKEEP_DB")
		if path == "" {
			path = "lanekeep.db"
		}
		if err := db.RunMigrateCommand(os.Args[2:], path, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Println("lanekeep", version.String())
		return
	}

	logger := monitoring.NewLogger(*debug, os.Stderr)
	monitoring.SetLogger(monitoring.NewLogrusLogf(logger))
	logger.WithField("version", version.String()).Info("starting lanekeep")

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	source, err := selectSource(*pcapFile, *videoFile, *udpListen)
	if err != nil {
		log.Fatalf("invalid source flags: %v", err)
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	det, err := pipeline.NewDetector(pipeline.ConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	clock := timeutil.RealClock{}
	runner := pipeline.NewRunner(det, perf.NewTracker(clock))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	var store *db.DB
	var sessionID string
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()

		sess, err := store.CreateSession(source.describe(), clock.Now(), tuning)
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		sessionID = sess.ID
		runner.AddSink(store.NewRecorder(sessionID, clock))
		logger.WithField("session", sessionID).Info("recording session")
	}

	feedStats := network.NewFeedStats(clock)

	if *forwardAddr != "" {
		fwd, err := network.NewResultForwarder(*forwardAddr, feedStats, tuning.GetStatsInterval())
		if err != nil {
			log.Fatalf("failed to create result forwarder: %v", err)
		}
		defer fwd.Close()
		fwd.Start(ctx)
		runner.AddSink(fwd)
	}

	var display serialmux.SerialMuxInterface
	var displayState *serialmux.DisplayMonitor
	if *serialPort != "" {
		opts := serialmux.PortOptions{BaudRate: *serialBaud}
		port, err := serialmux.NewRealSerialMux(*serialPort, opts)
		if err != nil {
			log.Fatalf("failed to open guidance display: %v", err)
		}
		logger.WithFields(logrus.Fields{"port": *serialPort, "mode": opts.String()}).Info("guidance display connected")
		display = port
	} else {
		display = serialmux.NewDisabledSerialMux()
	}
	defer display.Close()
	if err := display.Initialize(); err != nil {
		log.Fatalf("failed to initialize guidance display: %v", err)
	}
	displayState = serialmux.NewDisplayMonitor(clock)
	runner.AddSink(serialmux.NewGuidanceWriter(display, displayState))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := display.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[display] warning: monitor stopped: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		displayState.Run(ctx, display)
	}()

	var plotter *monitor.PerfPlotter
	if *plotsDir != "" {
		plotter = monitor.NewPerfPlotter(fsutil.OSFileSystem{})
		runner.AddSink(plotter)
	}

	health := monitor.NewHealthServer(runner, *stallAfter, clock)
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx, time.Second)
	}()
	if *grpcListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.Serve(ctx, *grpcListen); err != nil {
				monitoring.Logf("[health] warning: gRPC server: %v", err)
			}
		}()
	}

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:   *listen,
		Runner:    runner,
		DB:        store,
		Feed:      feedStats,
		Display:   displayState,
		Serial:    display,
		SessionID: sessionID,
		PlotsDir:  *plotsDir,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// The source runs in the foreground. Finite sources (pcap, video) end
	// the process when exhausted.
	if err := runSource(ctx, source, runner, feedStats, tuning); err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Logf("[feed] warning: source stopped: %v", err)
	}
	stop()
	wg.Wait()

	logger.WithField("frames", runner.Frames()).Info("detector stopped")
	if summary := runner.Perf().Summary(); summary.Frames > 0 {
		logger.WithFields(logrus.Fields{
			"mean_ms": summary.MeanMs,
			"p95_ms":  summary.P95Ms,
			"p99_ms":  summary.P99Ms,
		}).Info("frame time summary")
	}

	if store != nil {
		if err := store.EndSession(sessionID, clock.Now()); err != nil {
			monitoring.Logf("[db] warning: failed to end session: %v", err)
		}
	}
	if plotter != nil {
		dir, err := plotRunDir(*plotsDir, sessionID, clock.Now())
		if err != nil {
			monitoring.Logf("[plots] warning: %v", err)
			return
		}
		paths, err := plotter.GeneratePlots(dir)
		if err != nil {
			monitoring.Logf("[plots] warning: %v", err)
		}
		for _, p := range paths {
			monitoring.Logf("[plots] wrote %s", p)
		}
	}
}

// plotRunDir names one run's plot directory under base from the start
// time and session id. base is created if missing.
func plotRunDir(base, sessionID string, now time.Time) (string, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("create plots dir: %w", err)
	}
	name := now.Format("20060102_150405")
	if sessionID != "" {
		name += "_" + sessionID
	}
	dir := filepath.Join(base, security.SanitizeFilename(name))
	if err := security.ValidatePathWithinDirectory(dir, base); err != nil {
		return "", err
	}
	return dir, nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

type sourceKind int

const (
	sourceUDP sourceKind = iota
	sourcePCAP
	sourceVideo
)

type frameSource struct {
	kind sourceKind
	path string
}

func (s frameSource) describe() string {
	switch s.kind {
	case sourcePCAP:
		return "pcap:" + s.path
	case sourceVideo:
		return "video:" + s.path
	default:
		return "udp:" + s.path
	}
}

// selectSource picks the frame source. Replays take priority over the live
// UDP feed; asking for two replays at once is an error.
func selectSource(pcap, video, udp string) (frameSource, error) {
	switch {
	case pcap != "" && video != "":
		return frameSource{}, errors.New("-pcap and -video are mutually exclusive")
	case pcap != "":
		return frameSource{kind: sourcePCAP, path: pcap}, nil
	case video != "":
		if !extract.Available() {
			return frameSource{}, fmt.Errorf("-video: %w", extract.ErrUnavailable)
		}
		return frameSource{kind: sourceVideo, path: video}, nil
	case udp != "":
		return frameSource{kind: sourceUDP, path: udp}, nil
	default:
		return frameSource{}, errors.New("one of -udp, -pcap or -video is required")
	}
}

func runSource(ctx context.Context, src frameSource, runner *pipeline.Runner, stats *network.FeedStats, tuning *config.TuningConfig) error {
	handle := func(f l1segments.Frame) { runner.HandleFrame(f) }

	switch src.kind {
	case sourcePCAP:
		return network.ReadPCAPFile(ctx, src.path, *pcapPort, handle, stats)
	case sourceVideo:
		ex, err := extract.NewHoughExtractor(src.path, runner.Detector().Region(), extract.DefaultHoughParams())
		if err != nil {
			return err
		}
		defer ex.Close()
		n, err := extract.Run(ctx, ex, handle)
		monitoring.Logf("[video] extracted %d frames from %s", n, src.path)
		return err
	default:
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     src.path,
			RcvBuf:      *udpRcvBuf,
			LogInterval: tuning.GetStatsInterval(),
			Stats:       stats,
			Handler:     handle,
		})
		return listener.Start(ctx)
	}
}
