package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	"github.com/zhouzirui/mentor-relay/backend/internal/config"
	"github.com/zhouzirui/mentor-relay/backend/internal/handler"
	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/auth"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/history"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Log.Infof("no .env file loaded (%v), using process environment only", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Errorf("failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Log.Errorf("failed to open %s store: %v", cfg.Store.Driver, err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Log.Warnf("failed to close store: %v", err)
		}
	}()
	logger.Log.Infof("using %s store", st.Name())

	gen, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		logger.Log.Warnf("AI generator unavailable, replies will report the failure: %v", err)
		gen = nil
	} else {
		logger.Log.Infof("AI generator %s initialized", gen.Name())
	}
	aiService := ai.NewService(gen, ai.Options{
		Streaming: cfg.AI.StreamResponse,
		Timeout:   cfg.AI.Timeout,
	})

	authCfg := cfg.Auth
	if authCfg.Secret == "" {
		authCfg.Secret = randomSecret()
		logger.Log.Warn("JWT_SECRET not set; using an ephemeral secret, sessions end on restart")
	}
	tokens, err := auth.NewTokenManager(authCfg)
	if err != nil {
		logger.Log.Errorf("failed to init token manager: %v", err)
		os.Exit(1)
	}
	provider := auth.NewProvider(st, tokens)

	personas := persona.Seed()
	if cfg.PersonaFile != "" {
		personas, err = persona.LoadFile(cfg.PersonaFile)
		if err != nil {
			logger.Log.Errorf("failed to load personas: %v", err)
			os.Exit(1)
		}
		logger.Log.Infof("loaded %d personas from %s", len(personas), cfg.PersonaFile)
	}
	personaStore := persona.NewMemoryStore(personas)
	historyService := history.NewService(st, cfg.Store.HistoryLimit)
	chatService := chat.NewService(aiService, historyService, personaStore, failureClassifier(st))

	speechCapability := speech.Detect(cfg.Speech)

	router := handler.NewRouter(handler.Dependencies{
		Personas:       personaStore,
		Chat:           chatService,
		AI:             aiService,
		Auth:           provider,
		Speech:         speechCapability,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	startServer(ctx, cfg.Server, router)
}

// failureClassifier adds the store's name as a network keyword only for
// drivers that reach across the network.
func failureClassifier(st store.Store) failure.Classifier {
	names := []string{failure.DefaultBackendName}
	if store.Remote(st) {
		names = append(names, st.Name())
	}
	return failure.New(names...)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Log.Infof("mentor relay listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Log.Errorf("server error: %v", err)
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
