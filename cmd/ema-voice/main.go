// Command ema-voice records a spoken question, sends it to the inference
// backend and plays the spoken reply as it streams back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	playback "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/koscakluka/ema-voice/internal/observe"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	printSchema := flag.Bool("print-config-schema", false, "print the JSON schema of the configuration file and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			fmt.Fprintln(os.Stderr, "ema-voice:", err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "ema-voice:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slogLevel(cfg.Log.Level)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		LogWriter:      logFile,
		LogLevel:       slogLevel(cfg.Log.Level),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store := audio.NewStore()
	sink, err := openSink(cfg, store)
	if err != nil {
		return err
	}
	defer sink.Close()

	backend, err := openTransport(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := &controller{
		sink: sink,
		selection: playback.Selection{
			SessionID: cfg.Backend.SessionID,
			ModelID:   cfg.Backend.ModelID,
			VoiceID:   cfg.Backend.VoiceID,
		},
	}
	bridge := newUIBridge()
	program := tea.NewProgram(newModel(ctrl, cfg.Backend), tea.WithAltScreen(), tea.WithContext(ctx))

	engine := playback.NewEngine(sink,
		playback.WithTransport(backend),
		playback.WithResourceManager(store),
		playback.WithReleaseGrace(cfg.Playback.ReleaseGrace),
		playback.WithErrorHold(cfg.Playback.ErrorHold),
		playback.WithWaveformBars(cfg.Playback.WaveformBars),
		playback.WithModeChangedCallback(func(_, mode playback.Mode) {
			bridge.post(modeMsg{mode: mode})
		}),
		playback.WithWaveformCallback(func(bars []uint8, progress float64) {
			bridge.post(waveformMsg{bars: bars, progress: progress})
		}),
		playback.WithErrorCallback(func(err error) {
			bridge.post(errorMsg{err: err})
		}),
		playback.WithEventCallback(func(event events.Event) {
			slog.Debug("engine event", "kind", string(event.Kind()))
		}),
	)
	defer engine.Close()
	ctrl.engine = engine

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bridge.run(gctx, program.Send)
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("ui: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
