package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatapp "stitchtalk/internal/app/chat"
	"stitchtalk/internal/app/presence"
	domainchat "stitchtalk/internal/domain/chat"
	"stitchtalk/internal/domain/identity"
	"stitchtalk/internal/infra/broker/kafka"
	"stitchtalk/internal/infra/config"
	mongodb "stitchtalk/internal/infra/db/mongo"
	ginserver "stitchtalk/internal/infra/http/gin"
	"stitchtalk/internal/infra/obs"
	"stitchtalk/internal/infra/security"
	"stitchtalk/internal/infra/storage/memory"
	"stitchtalk/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	store, directory, ready, closeStores, err := buildStorage(cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	hub := ws.NewHub(logger)

	var mirror *kafka.EventMirror
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Warn("kafka unavailable, event mirror disabled", "error", err)
		} else {
			defer producer.Close()
			mirror = &kafka.EventMirror{
				Producer: producer,
				Topic:    cfg.KafkaTopicPrefix + "chat-events",
				Logger:   logger,
			}
			logger.Info("kafka event mirror enabled", "brokers", cfg.KafkaBrokers)
		}
	}

	presenceEvents := presence.Broadcaster(hub)
	if mirror != nil {
		presenceEvents = presence.Fanout{hub, mirror}
	}
	registry := presence.NewRegistry(directory, presenceEvents, logger)

	chatService := &chatapp.Service{
		Store:     store,
		Directory: directory,
		Events:    hub,
		Logger:    logger,
	}
	if mirror != nil {
		chatService.Mirror = mirror
	}

	verifier := security.TokenVerifier{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.SessionTTL,
	}
	gateway := ws.NewGateway(ctx, hub, registry, chatService, verifier, logger, ws.Config{
		SendBuffer:       cfg.WSSendBuffer,
		ReadLimit:        cfg.WSReadLimit,
		HandshakeTimeout: cfg.WSHandshake,
	})

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: ready,
	}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Directory: directory, Logger: logger},
		Chat:           ginserver.ChatHandler{Service: chatService, Logger: logger},
		Directory:      ginserver.DirectoryHandler{Directory: directory, Presence: registry, Logger: logger},
		Realtime:       gateway.Handle,
		AuthMiddleware: ginserver.AuthMiddleware{Verifier: verifier, Logger: logger}.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// buildStorage picks Mongo-backed stores when MONGO_URI is set and
// falls back to in-memory stores for local runs.
func buildStorage(cfg config.Config, logger *slog.Logger) (domainchat.Store, identity.Directory, func() error, func(), error) {
	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		logger.Info("mongo storage selected", "db", cfg.MongoDB)
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}
		ready := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		return mongodb.NewMessageRepository(client.DB), mongodb.NewIdentityRepository(client.DB), ready, closeFn, nil
	}

	logger.Info("in-memory storage selected")
	directory := memory.NewDirectory()
	fixturesPath := cfg.UserFixtures
	if fixturesPath == "" {
		fixturesPath = defaultUserFixturesPath()
	}
	if err := loadUserFixtures(directory, fixturesPath, logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err, "path", fixturesPath)
	}
	return memory.NewMessageStore(), directory, func() error { return nil }, func() {}, nil
}

type userFixture struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

func loadUserFixtures(directory *memory.Directory, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("user fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []userFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		kind, err := identity.ParseKind(fx.Kind)
		if err != nil {
			logger.Error("fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := domainchat.ValidateUserID(fx.ID); err != nil {
			logger.Error("fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		directory.Put(identity.Profile{
			ID:        fx.ID,
			Kind:      kind,
			Name:      fx.Name,
			Role:      fx.Role,
			AvatarURL: fx.Avatar,
		})
		logger.Info("user fixture imported", "user_id", fx.ID, "kind", kind)
	}
	return nil
}

func defaultUserFixturesPath() string {
	return filepath.Join("data", "users.json")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
