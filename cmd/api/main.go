package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/petpal-ai/petcare/backend/internal/backend"
	"github.com/petpal-ai/petcare/backend/internal/config"
	"github.com/petpal-ai/petcare/backend/internal/handler"
	"github.com/petpal-ai/petcare/backend/internal/service/composer"
	"github.com/petpal-ai/petcare/backend/internal/service/dictation"
	"github.com/petpal-ai/petcare/backend/internal/service/dispatch"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	httpClient := backend.NewHTTPClient(cfg.Backends.Timeout)
	textGen := backend.NewTextGenClient(cfg.Backends.ChatBaseURL, httpClient)
	analyzer := backend.NewImageAnalysisClient(cfg.Backends.DiseaseBaseURL, httpClient)
	planner := backend.NewDietPlannerClient(cfg.Backends.DietPlannerBaseURL, httpClient)

	store := transcript.NewStore()
	dispatcher := dispatch.New(store, textGen, analyzer)
	composerSvc := composer.NewService(store, dispatcher)
	bridge := dictation.NewBridge(store, composerSvc)
	composerSvc.AttachCapture(bridge)

	router := handler.NewRouter(store, composerSvc, bridge, planner, cfg.Server.MaxUploadBytes)

	startServer(ctx, cfg.Server, router, dispatcher)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, dispatcher *dispatch.Dispatcher) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("PetPal assistant backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv, dispatcher); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server, dispatcher *dispatch.Dispatcher) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		// Dispatched backend calls run to completion; give them the
		// same grace window before exiting.
		done := make(chan struct{})
		go func() {
			dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Println("shutdown timeout reached with backend calls still in flight")
		}

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
