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

	"github.com/zhizhi/bobi/backend/internal/config"
	"github.com/zhizhi/bobi/backend/internal/handler"
	chatHandler "github.com/zhizhi/bobi/backend/internal/handler/chat"
	"github.com/zhizhi/bobi/backend/internal/search"
	"github.com/zhizhi/bobi/backend/internal/service/ai"
	"github.com/zhizhi/bobi/backend/internal/service/chat"
	"github.com/zhizhi/bobi/backend/internal/store/dynamo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	awsCfg, err := cfg.Store.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("failed to load AWS configuration: %v", err)
	}

	store := dynamo.New(cfg.Store.NewDynamoClient(awsCfg), cfg.Store.Table)
	log.Printf("message store ready, table=%s region=%s", cfg.Store.Table, cfg.Store.Region)

	var completer chat.Completer
	if cfg.LLM.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.LLM)
		if err != nil {
			log.Printf("warning: failed to initialize completion provider: %v", err)
			log.Println("continuing without completions - check the LLM environment variables")
		} else {
			completer = aiSvc
			log.Printf("completion provider ready, provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)
		}
	} else {
		log.Println("LLM credentials not configured, skipping completion provider")
	}

	chatSvc := chat.NewService(store, completer, cfg.Chat.SystemPrompt, cfg.Chat.Location, cfg.LLM.Timeout)

	var searcher chatHandler.Searcher
	if cfg.Search.Enabled() {
		searcher = search.New(awsCfg.Credentials, cfg.Search)
		log.Printf("search client ready, host=%s index=%s", cfg.Search.Host, cfg.Search.Index)
	} else {
		log.Println("SEARCH_HOST not configured, skipping search client")
	}

	router := handler.NewRouter(chatSvc, searcher)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Bobi backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
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
