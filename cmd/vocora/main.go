package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocora/vocora/internal/config"
	"github.com/vocora/vocora/internal/router"
	"github.com/vocora/vocora/internal/server"
	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/synth"
	"github.com/vocora/vocora/internal/weather"
	"github.com/vocora/vocora/pkg/ai/llm"
	"github.com/vocora/vocora/pkg/ai/stt"
	"github.com/vocora/vocora/pkg/plugin/deepgram"
	"github.com/vocora/vocora/pkg/plugin/gemini"
	"github.com/vocora/vocora/pkg/plugin/groq"
	"github.com/vocora/vocora/pkg/plugin/murf"
	"github.com/vocora/vocora/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:          "vocora",
	Short:        "Vocora - realtime voice assistant server",
	Long:         `vocora runs the realtime voice assistant: streaming speech recognition, turn-taking with barge-in, reply generation with ordered fallback, and chunked speech synthesis over a websocket protocol.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the voice assistant server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		cfg := config.Load()

		if err := cfg.Validate(); err != nil {
			logger.Error("configuration invalid", slog.String("error", err.Error()))
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting vocora",
			slog.String("version", version.Version),
			slog.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))

		srv, store, err := buildServer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		go store.Run(ctx)

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

// buildServer wires providers, session store, response routing, and
// synthesis into the HTTP server.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, *session.MemStore, error) {
	store := session.NewMemStore(session.StoreConfig{
		IdleTimeout:     cfg.SessionIdleTimeout,
		DisconnectGrace: cfg.DisconnectGrace,
		SweepInterval:   cfg.SweepInterval,
		Logger:          logger,
	})

	var fast, deep []llm.Provider
	if cfg.GeminiAPIKey != "" {
		flash, err := gemini.New(ctx, cfg.GeminiAPIKey, gemini.FastModel)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing gemini: %w", err)
		}
		pro, err := gemini.New(ctx, cfg.GeminiAPIKey, gemini.DeepModel)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing gemini: %w", err)
		}
		fast = append(fast, flash)
		deep = append(deep, pro)
	}
	if cfg.GroqAPIKey != "" {
		g := groq.New(cfg.GroqAPIKey, groq.DefaultModel)
		fast = append(fast, g)
		deep = append(deep, g)
	}

	var weatherSvc router.WeatherService
	if cfg.OpenWeatherAPIKey != "" {
		weatherSvc = weather.New(cfg.OpenWeatherAPIKey, weather.WithLogger(logger))
	} else {
		logger.Warn("OPENWEATHER_API_KEY not set, weather questions will use the generation back-ends")
	}

	r := router.New(router.Config{
		Fast:      fast,
		Deep:      deep,
		Weather:   weatherSvc,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    logger,
	})

	tts := murf.New(cfg.MurfAPIKey)
	streamer := synth.NewStreamer(tts, synth.WithLogger(logger))

	srv := server.New(server.Config{
		Store: store,
		STT:   deepgram.New(cfg.DeepgramAPIKey, deepgram.WithLogger(logger)),
		StreamCfg: stt.StreamConfig{
			SampleRate:  cfg.SampleRate,
			NumChannels: 1,
			Language:    cfg.Language,
			Endpointing: cfg.Endpointing,
			Interim:     true,
		},
		Responder:      r,
		Synthesizer:    streamer,
		Voices:         murf.Voices(),
		DefaultVoice:   cfg.DefaultVoice,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	return srv, store, nil
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{}
	switch os.Getenv("VOCORA_LOG_LEVEL") {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if os.Getenv("VOCORA_LOG_FORMAT") == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
