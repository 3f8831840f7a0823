// Command bgserver runs the backgammon evaluation API in front of gnubg.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/gnubgserver/internal/config"
	"github.com/yourusername/gnubgserver/pkg/api"
	"github.com/yourusername/gnubgserver/pkg/engine"
	"github.com/yourusername/gnubgserver/pkg/external"
)

func main() {
	cfg := config.New()
	if err := cfg.Load(os.Args[0], os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	setupLogging(cfg.GetString(config.ConfigLogLevel))

	gnubgArgs, _ := cfg.GnubgArgs() // checked by Load
	proc := external.NewProcess(external.Options{
		Path:           cfg.GetString(config.ConfigGnubgPath),
		Args:           gnubgArgs,
		BannerTimeout:  cfg.GetDuration(config.ConfigBannerTimeout),
		CommandTimeout: cfg.GetDuration(config.ConfigCommandTimeout),
		StopTimeout:    cfg.GetDuration(config.ConfigStopTimeout),
		LaunchAttempts: external.DefaultOptions().LaunchAttempts,
		Conn: external.ConnOptions{
			IdleDivisor:    cfg.GetInt(config.ConfigIdleDivisor),
			MinLineTimeout: cfg.GetDuration(config.ConfigMinLineTimeout),
			MaxWait:        cfg.GetDuration(config.ConfigMaxWait),
			PromptMarker:   external.PromptMarker,
		},
	})

	serverConfig := api.DefaultConfig()
	serverConfig.Host = cfg.GetString(config.ConfigHost)
	serverConfig.Port = cfg.GetInt(config.ConfigPort)
	serverConfig.MaxInFlight = cfg.GetInt(config.ConfigMaxInFlight)
	serverConfig.DefaultPlies = cfg.GetInt(config.ConfigDefaultPlies)
	server := api.NewServer(proc, serverConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// The API answers 503 until the engine is up.
	go func() {
		if err := proc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gnubg start failed")
			return
		}
		server.Handlers().SetEvaluator(newEvaluator(proc, cfg))
		log.Info().Str("mode", proc.Mode()).Str("version", proc.Version()).Msg("engine ready")
	}()

	var responder *api.NATSResponder
	if url := cfg.GetString(config.ConfigNatsURL); url != "" {
		nc, err := nats.Connect(url, nats.Name("bgserver"))
		if err != nil {
			log.Fatal().Err(err).Str("url", url).Msg("nats connect failed")
		}
		defer nc.Close()
		responder = api.NewNATSResponder(nc, server.Handlers(),
			cfg.GetString(config.ConfigNatsSubjectPrefix), serverConfig.WriteTimeout)
		if err := responder.Start(); err != nil {
			log.Fatal().Err(err).Msg("nats subscribe failed")
		}
	}

	select {
	case err := <-errChan:
		log.Error().Err(err).Msg("server error")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if responder != nil {
		responder.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := proc.Stop(); err != nil {
		log.Error().Err(err).Msg("gnubg shutdown failed")
	}
	log.Info().Msg("stopped")
}

func newEvaluator(proc *external.Process, cfg *config.Config) engine.Evaluator {
	mock := engine.NewMock()
	if proc.Version() == external.MockVersion {
		return mock
	}
	return engine.NewEngine(proc, mock, engine.Options{
		CommandTimeout: cfg.GetDuration(config.ConfigCommandTimeout),
		HintTimeout:    cfg.GetDuration(config.ConfigHintTimeout),
		CacheSize:      cfg.GetInt(config.ConfigCacheSize),
	})
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}
