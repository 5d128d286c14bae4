package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/zsiec/flowprobe/internal/config"
	"github.com/zsiec/flowprobe/internal/health"
	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/receiver"
	"github.com/zsiec/flowprobe/internal/report"
	"github.com/zsiec/flowprobe/internal/sender"
	"github.com/zsiec/flowprobe/internal/server"
	"github.com/zsiec/flowprobe/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code. Measurement
// lines go to stdout; usage and log output go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configPath  string
		showVersion bool
	)

	fs := flag.NewFlagSet("flowprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "config", "", "Path to configuration file (optional)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.Usage = func() { printUsage(stderr, fs.PrintDefaults) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if showVersion {
		fmt.Fprintln(stdout, version.GetInfo().String())
		return 0
	}

	inv, err := parseArgs(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%v\n\n", err)
		fs.Usage()
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	base, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	if cfg.Logging.Output == "stderr" {
		base.SetOutput(stderr)
	}
	log := logger.Root(base)

	log.WithField("version", version.GetInfo().Short()).Debug("Starting flowprobe")

	switch inv.mode {
	case modeServer:
		err = runServer(ctx, cfg, log, inv, stdout)
	case modeClient:
		err = runClient(ctx, cfg, log, inv)
	}
	if err != nil {
		log.WithError(err).Error("flowprobe failed")
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, log logger.Logger, inv *invocation, stdout io.Writer) error {
	healthMgr := health.NewManager(log)
	reporters := []report.Reporter{report.NewWriterReporter(stdout, log)}

	if cfg.Sink.Redis.Enabled {
		client := report.NewRedisClient(&cfg.Sink.Redis)
		defer client.Close()
		reporters = append(reporters, report.NewRedisReporter(client, &cfg.Sink.Redis))
		healthMgr.Register(health.NewRedisChecker(client))
		log.WithField("stream", cfg.Sink.Redis.Stream).Info("Publishing samples to Redis")
	}

	recv, err := receiver.New(receiver.ConfigFrom(cfg.Receiver, inv.port), log, report.NewMultiReporter(log, reporters...))
	if err != nil {
		return err
	}
	if err := recv.Listen(ctx); err != nil {
		return err
	}
	defer recv.Close()

	healthMgr.Register(health.NewReceiverChecker(recv))

	stopAdmin := startAdmin(ctx, cfg, log, healthMgr, recv)
	defer stopAdmin()

	return recv.Serve(ctx)
}

func runClient(ctx context.Context, cfg *config.Config, log logger.Logger, inv *invocation) error {
	mark, tos := sender.MarkingPolicy(inv.flow, cfg.Sender)

	s, err := sender.New(sender.Config{
		Destination:     inv.destination,
		Port:            inv.port,
		Period:          inv.period,
		Count:           inv.count,
		Flow:            inv.flow,
		Mark:            mark,
		TOS:             tos,
		WriteBufferSize: cfg.Sender.WriteBufferSize,
	}, log)
	if err != nil {
		return err
	}

	var running atomic.Bool
	running.Store(true)
	healthMgr := health.NewManager(log)
	healthMgr.Register(health.NewCheckerFunc("sender", func(ctx context.Context) error {
		if !running.Load() {
			return fmt.Errorf("sender run finished")
		}
		return nil
	}))

	stopAdmin := startAdmin(ctx, cfg, log, healthMgr, nil)
	defer stopAdmin()

	res, err := s.Run(ctx)
	running.Store(false)
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"run_id":    res.RunID,
		"flow":      inv.flow.String(),
		"sent":      res.Sent,
		"last_send": res.LastSend,
		"cancelled": res.Cancelled,
	}).Info("Sender finished")
	return nil
}

// startAdmin runs the admin server when enabled. The returned function stops
// it and waits for it to exit.
func startAdmin(ctx context.Context, cfg *config.Config, log logger.Logger, healthMgr *health.Manager, stats server.StatsSource) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}

	adminCtx, cancel := context.WithCancel(ctx)
	srv := server.New(&cfg.Metrics, log, healthMgr, stats)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(adminCtx); err != nil {
			log.WithError(err).Warn("Admin server stopped with error")
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
