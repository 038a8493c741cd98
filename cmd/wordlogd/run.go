package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wordlog/internal/config"
	"wordlog/internal/health"
	"wordlog/internal/keylogger"
	"wordlog/internal/logging"
	"wordlog/internal/metrics"
	"wordlog/internal/recorder"
	"wordlog/internal/sink"
)

func cmdRun(args []string, stdin io.Reader, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	configPath := fs.String("config", "", "configuration file")
	scriptPath := fs.String("script", "-", "key event script, - for stdin")
	outPath := fs.String("out", "", "word log path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(resolveConfigPath(*configPath))
	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Flag overrides must not leak into the loader's copy, which reloads
	// are compared against.
	cfg := loaded.Clone()
	if *outPath != "" {
		cfg.Output.Path = *outPath
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "path", loader.Path(), "error", err)
	} else {
		defer loader.Close()
		loader.OnChange(func(old, updated *config.Config) {
			applyReload(logger, old, updated)
		})
	}

	var script io.Reader = stdin
	if *scriptPath != "-" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		script = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case err := <-loader.Errors():
				logger.Warn("config reload rejected", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	sinks, err := openSinks(cfg, logger.WithComponent("sink"))
	if err != nil {
		return err
	}
	defer sinks.Close()

	m := metrics.NewWordlogMetrics(nil)
	checker := health.NewChecker()
	checker.RegisterFunc("word_log", true, health.FileCheck(sinks.file.Path()))
	checker.RegisterFunc("sink_writes", false, health.GrowthCheck(m.WriteErrors.Value))
	if sinks.index != nil {
		checker.RegisterFunc("index", false, health.PingCheck(sinks.index.Ping))
	}
	if cfg.Metrics.Enabled {
		for pattern, h := range checker.Routes() {
			m.Handle(pattern, h)
		}
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.Error("metrics endpoint failed", "listen", cfg.Metrics.Listen, "error", err)
			}
		}()
		logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}

	crash := logging.NewCrashHandler(crashDir(), Version, "wordlogd")

	src := keylogger.NewScript()
	rec := recorder.New(sinks.out,
		recorder.WithLogger(logger.Logger),
		recorder.WithMetrics(m),
	)
	kl := keylogger.New(rec, src,
		keylogger.WithLogger(logger.Logger),
		keylogger.WithMetrics(m),
		keylogger.WithPanicGuard(crash.Recover),
	)

	defer checker.SetReady(false)
	return capture(ctx, kl, src, script, logger, func() { checker.SetReady(true) })
}

// capture plays script into the pipeline. When the script ends, queued
// events are drained and capture returns. A signal stops both early.
func capture(
	ctx context.Context,
	kl *keylogger.KeyLogger,
	src *keylogger.ScriptSource,
	script io.Reader,
	logger *logging.Logger,
	onReady func(),
) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- kl.Run(runCtx) }()

	select {
	case <-kl.Ready():
	case err := <-done:
		return fmt.Errorf("start key logger: %w", err)
	}
	onReady()

	played := make(chan error, 1)
	go func() { played <- src.Play(runCtx, script) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("key logger: %w", err)
		}
		// Signalled; the script goroutine exits with runCtx.
		return nil
	case err := <-played:
		cancel()
		runErr := <-done
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("key logger: %w", runErr)
		}
		logger.Info("script finished")
		return nil
	}
}

// sinks are the open destinations for committed lines.
type sinks struct {
	out    io.Writer
	file   *sink.File
	index  *sink.Index
	logger *logging.Logger
}

// openSinks opens the word log and, if enabled, the index mirror.
func openSinks(cfg *config.Config, logger *logging.Logger) (*sinks, error) {
	file, err := sink.OpenFile(sink.FileConfig{
		Path:       cfg.Output.Path,
		MaxSizeMB:  int64(cfg.Output.MaxSizeMB),
		MaxBackups: cfg.Output.MaxBackups,
		Compress:   cfg.Output.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("open word log: %w", err)
	}
	logger.Info("appending to word log", "path", file.Path())

	s := &sinks{out: file, file: file, logger: logger}
	if !cfg.Index.Enabled {
		return s, nil
	}

	s.index, err = sink.OpenIndex(cfg.Index.Path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}

	tee := sink.Tee(file, s.index)
	tee.OnError = func(_ io.Writer, err error) {
		logger.Warn("index write failed", "error", err)
	}
	s.out = tee
	return s, nil
}

func (s *sinks) Close() {
	if s.index != nil {
		closeLogged(s.logger, "index", s.index)
	}
	closeLogged(s.logger, "word log", s.file)
}

func closeLogged(logger *logging.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "sink", name, "error", err)
	}
}

func crashDir() string {
	return filepath.Join(config.DataDir(), "crashes")
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

func newLogger(lc config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	cfg := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		FilePath:   lc.FilePath,
		MaxSize:    int64(lc.MaxSizeMB),
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
		Component:  "wordlogd",
	}
	if lc.Output == "stderr" {
		cfg.Writer = stderr
	}
	return logging.New(cfg)
}

// applyReload applies the settings that can change while running. Sinks
// stay open for the life of the process.
func applyReload(logger *logging.Logger, old, updated *config.Config) {
	if level, err := logging.ParseLevel(updated.Logging.Level); err == nil && level != logger.GetLevel() {
		logger.SetLevel(level)
		logger.Info("log level changed", "level", logging.LevelString(level))
	}
	if old == nil {
		return
	}
	if old.Output != updated.Output || old.Index != updated.Index || old.Metrics != updated.Metrics {
		logger.Warn("sink and metrics settings take effect on restart")
	}
}
