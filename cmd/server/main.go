package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hperssn/focussync/internal/config"
	"github.com/hperssn/focussync/internal/http"
	"github.com/hperssn/focussync/internal/service"
	"github.com/hperssn/focussync/internal/storage"
)

func main() {
	logger := log.New(os.Stderr, "focus-server: ", log.LstdFlags)

	cfg, err := config.LoadServer(os.Getenv("FOCUS_CONFIG"))
	if err != nil {
		logger.Fatal(err)
	}

	repo, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal(err)
	}
	defer repo.Close()

	svc := service.NewSessionService(repo, service.NewHub(),
		service.WithDefaultDuration(cfg.DefaultSessionSeconds),
		service.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end when the server is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (%s)", cfg.Addr, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}
