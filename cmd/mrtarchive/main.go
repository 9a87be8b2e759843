package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/route-beacon/mrtarchive/internal/archive"
	"github.com/route-beacon/mrtarchive/internal/config"
	"github.com/route-beacon/mrtarchive/internal/db"
	"github.com/route-beacon/mrtarchive/internal/forward"
	"github.com/route-beacon/mrtarchive/internal/metrics"
	"github.com/route-beacon/mrtarchive/internal/mrt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "replay":
		runReplay()
	case "migrate":
		runMigrate()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: mrtarchive <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  replay        Decode MRT dump files and archive them to Postgres")
	fmt.Println("  migrate       Run database migrations")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// migrationsDir returns the path to the migrations directory relative to the binary.
func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

// replayWorkers bounds how many dump files are decoded concurrently.
// Each mrt.Parse call is single-threaded and independent, so this is a
// plain worker-pool-over-file-paths, not a pipeline stage.
func replayWorkers() int {
	if n := runtime.NumCPU(); n > 1 {
		return n
	}
	return 1
}

func runReplay() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting mrtarchive replay",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.Strings("input_paths", cfg.Input.Paths),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	store := archive.NewStore(pool)
	pipeline := archive.NewPipeline(store, cfg.Archive.BatchSize, cfg.Archive.FlushIntervalMs, logger.Named("archive.pipeline"))

	items := make(chan archive.Item, cfg.Archive.ChannelBufferSize)
	var pipelineWg sync.WaitGroup
	pipelineWg.Add(1)
	go func() {
		defer pipelineWg.Done()
		pipeline.Run(ctx, items)
	}()

	var producer *forward.Producer
	if cfg.Forward.Enabled {
		tlsCfg, err := cfg.Forward.BuildTLSConfig()
		if err != nil {
			logger.Fatal("failed to build forward TLS config", zap.Error(err))
		}
		saslMech := cfg.Forward.BuildSASLMechanism()

		producer, err = forward.NewProducer(cfg.Forward.Brokers, cfg.Forward.ClientID, cfg.Forward.Topic, tlsCfg, saslMech, logger.Named("forward"))
		if err != nil {
			logger.Fatal("failed to create kafka forwarder", zap.Error(err))
		}
		defer producer.Close()
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Service.ShutdownTimeoutSeconds)*time.Second)
			defer flushCancel()
			if err := producer.Flush(flushCtx); err != nil {
				logger.Warn("forward flush did not complete before shutdown", zap.Error(err))
			}
		}()
		logger.Info("forwarding enabled", zap.String("topic", cfg.Forward.Topic))
	}

	files, err := discoverFiles(cfg.Input)
	if err != nil {
		logger.Fatal("failed to enumerate input files", zap.Error(err))
	}
	if len(files) == 0 && !cfg.Input.FollowGlob {
		logger.Warn("no input files matched, reading a single dump from stdin")
		files = []string{""}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	processBatch(ctx, files, cfg, items, producer, logger)

	// FollowGlob keeps the replay alive, periodically re-scanning
	// cfg.Input.Paths for files that weren't there on the previous pass
	// (a collector drops a new dump every rotation interval).
	if cfg.Input.FollowGlob {
		logger.Info("follow_glob enabled, watching input paths for new files")
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
	followLoop:
		for {
			select {
			case <-ctx.Done():
				break followLoop
			case <-ticker.C:
				found, err := discoverFiles(cfg.Input)
				if err != nil {
					logger.Error("failed to re-scan input paths", zap.Error(err))
					continue
				}
				var fresh []string
				for _, f := range found {
					if !seen[f] {
						seen[f] = true
						fresh = append(fresh, f)
					}
				}
				if len(fresh) > 0 {
					logger.Info("found new dump files", zap.Int("count", len(fresh)))
					processBatch(ctx, fresh, cfg, items, producer, logger)
				}
			}
		}
	}

	close(items)
	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	done := make(chan struct{})
	go func() { pipelineWg.Wait(); close(done) }()
	select {
	case <-done:
		logger.Info("archive pipeline drained")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout reached, pipeline may not have fully flushed")
	}

	logger.Info("mrtarchive replay finished")
}

// processBatch runs a bounded worker pool over files, decoding each
// one on its own goroutine and blocking until every file in the batch
// has been replayed.
func processBatch(ctx context.Context, files []string, cfg *config.Config, items chan<- archive.Item, producer *forward.Producer, logger *zap.Logger) {
	if len(files) == 0 {
		return
	}
	workers := replayWorkers()
	if workers > len(files) {
		workers = len(files)
	}
	fileCh := make(chan string, len(files))
	for _, f := range files {
		fileCh <- f
	}
	close(fileCh)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				if ctx.Err() != nil {
					return
				}
				replayFile(ctx, path, cfg, items, producer, logger)
			}
		}()
	}
	wg.Wait()
}

// discoverFiles expands cfg.Input.Paths: each entry is either a file
// (used as-is) or a directory (walked non-recursively for names
// matching FilePattern).
func discoverFiles(cfg config.InputConfig) ([]string, error) {
	var files []string
	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		pattern := cfg.FilePattern
		if pattern == "" {
			pattern = "*"
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			matched, err := filepath.Match(pattern, e.Name())
			if err != nil {
				return nil, fmt.Errorf("matching pattern %s: %w", pattern, err)
			}
			if matched {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}

// replayFile decodes one dump file (or stdin, for an empty path) and
// hands every decoded event to the archive pipeline and, when
// forwarding is enabled, the Kafka producer.
func replayFile(ctx context.Context, path string, cfg *config.Config, items chan<- archive.Item, producer *forward.Producer, logger *zap.Logger) {
	var r *os.File
	sourceFile := path
	if path == "" {
		r = os.Stdin
		sourceFile = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("failed to open input file", zap.String("path", path), zap.Error(err))
			return
		}
		defer f.Close()
		r = f
	}

	logger.Info("replaying dump file", zap.String("source_file", sourceFile))

	sinks := mrt.Sinks{
		Dump: func(rec *mrt.RIBRecord, peer *mrt.PeerTable, _ any) {
			metrics.RecordsTotal.WithLabelValues("dump", "rib").Inc()
			rows, err := archive.BuildRIBRows(sourceFile, rec, peer)
			if err != nil {
				metrics.DecodeErrorsTotal.WithLabelValues("archive", "build_rib_rows").Inc()
				logger.Warn("failed to build rib rows", zap.String("source_file", sourceFile), zap.Error(err))
				return
			}
			select {
			case items <- archive.Item{RIB: rows}:
			case <-ctx.Done():
			}
		},
		State: func(ev *mrt.StateChangeEvent, _ any) {
			metrics.RecordsTotal.WithLabelValues("bgp4mp", "state_change").Inc()
			row := archive.BuildStateRow(sourceFile, ev)
			select {
			case items <- archive.Item{State: &row}:
			case <-ctx.Done():
			}
		},
		Message: func(ev *mrt.MessageEvent, _ any) {
			metrics.RecordsTotal.WithLabelValues("bgp4mp", "message").Inc()
			row := archive.BuildMessageRow(sourceFile, ev, cfg.Archive.CompressRaw)
			select {
			case items <- archive.Item{Message: &row}:
			case <-ctx.Done():
				return
			}
			if producer != nil {
				producer.Send(ctx, sourceFile, ev)
			}
		},
		Notice: func(msg string) {
			metrics.DecodeErrorsTotal.WithLabelValues("dispatch", "notice").Inc()
			logger.Warn("mrt decode notice", zap.String("source_file", sourceFile), zap.String("detail", msg))
		},
	}

	if err := mrt.Parse(r, sinks); err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues("dispatch", "io_error").Inc()
		logger.Error("mrt stream terminated early", zap.String("source_file", sourceFile), zap.Error(err))
	}
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running migrations",
		zap.String("dsn", redactDSN(cfg.Postgres.DSN)),
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
