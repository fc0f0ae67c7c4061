package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	router "github.com/telodyne/cdmavoice/internal/adapters/http"
	"github.com/telodyne/cdmavoice/internal/adapters/radiosim"
	"github.com/telodyne/cdmavoice/internal/config"
	"github.com/telodyne/cdmavoice/internal/core"
	"github.com/telodyne/cdmavoice/internal/tracker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	driver := radiosim.New(cfg.MaxConnections, cfg.SimAutoAnswer)
	phone := core.NewPhone("cdma0")
	tr := tracker.New(driver, phone, tracker.Options{
		MaxConnections:        cfg.MaxConnections,
		MaxConnectionsPerCall: cfg.MaxConnectionsPerCall,
		PollInterval:          cfg.PollInterval,
		EventBuffer:           cfg.EventBuffer,
	})
	go func() {
		if err := tr.Run(ctx); err != nil {
			log.Error().Err(err).Msg("tracker stopped")
		}
	}()

	r := router.SetupRouter(ctx, cfg, tr)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("phone", phone.ID()).Msg("cdmavoice server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.LogFile != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
		})
	}
	log.Logger = log.Output(out)
}
