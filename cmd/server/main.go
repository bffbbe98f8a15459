package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recaudo/internal/acta"
	actahandler "recaudo/internal/acta/handler"
	"recaudo/internal/approval"
	"recaudo/internal/attachment"
	"recaudo/internal/audit"
	"recaudo/internal/blob"
	"recaudo/internal/external"
	"recaudo/internal/notify"
	"recaudo/internal/platform/config"
	"recaudo/internal/platform/httpserver"
	"recaudo/internal/platform/logger"
	"recaudo/internal/platform/metrics"
	"recaudo/internal/platform/middleware"
	platformredis "recaudo/internal/platform/redis"
	"recaudo/internal/ratelimit"
	"recaudo/internal/session"
	"recaudo/internal/signer"
	"recaudo/internal/storage"
	"recaudo/internal/storage/memory"
	"recaudo/internal/storage/postgres"
)

// Public-surface quota: requests per client per window.
const (
	publicRateLimit  = 30
	publicRateWindow = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	stores, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	blobStore, err := buildBlobStore(cfg.Storage)
	if err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	m := metrics.New()
	linkSigner := signer.New(cfg.LinkSigningKey)
	sessions := session.New(cfg.JWTSigningKey, "recaudo")
	notifier := notify.NewLogNotifier(log)

	auditSvc := audit.NewService(stores.audits)
	attachmentSvc := attachment.NewService(stores.attachments, stores.actas, blobStore, cfg.Storage.PresignTTL, m, log)
	actaSvc := acta.NewService(stores.actas, stores.participants, stores.commitments, stores.attachments,
		stores.users, auditSvc, m, log)
	approvalSvc := approval.NewService(stores.actas, stores.participants, stores.approvals, stores.commitments,
		attachmentSvc, auditSvc, linkSigner, notifier, cfg.PublicBaseURL, m, log)

	var publicLimiter ratelimit.Limiter
	if redisClient != nil {
		publicLimiter = ratelimit.NewRedis(redisClient.Client, publicRateLimit, publicRateWindow)
	} else {
		publicLimiter = ratelimit.NewMemory(publicRateLimit, publicRateWindow)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessions, log))
		actahandler.New(actaSvc, approvalSvc, attachmentSvc, log).Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(publicLimiter, log))
		external.New(approvalSvc, log).Register(r)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(redisClient))

	srv := httpserver.New(cfg.Addr, router)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "storage_backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-shutdownCtx.Done():
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type storeSet struct {
	actas        storage.ActaStore
	participants storage.ParticipantStore
	approvals    storage.ApprovalStore
	commitments  storage.CommitmentStore
	attachments  storage.AttachmentStore
	audits       storage.AuditStore
	users        storage.UserDirectory
}

// buildStores wires postgres when a database is configured and falls back to
// the in-memory stores for local development.
func buildStores(cfg config.Server, log *slog.Logger) (*storeSet, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		return &storeSet{
			actas:        memory.NewActaStore(),
			participants: memory.NewParticipantStore(),
			approvals:    memory.NewApprovalStore(),
			commitments:  memory.NewCommitmentStore(),
			attachments:  memory.NewAttachmentStore(),
			audits:       memory.NewAuditStore(),
			users:        memory.NewUserDirectory(),
		}, func() {}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return &storeSet{
		actas:        postgres.NewActaStore(db),
		participants: postgres.NewParticipantStore(db),
		approvals:    postgres.NewApprovalStore(db),
		commitments:  postgres.NewCommitmentStore(db),
		attachments:  postgres.NewAttachmentStore(db),
		audits:       postgres.NewAuditStore(db),
		users:        postgres.NewUserDirectory(db),
	}, func() { _ = db.Close() }, nil
}

func buildBlobStore(cfg config.Storage) (blob.Store, error) {
	switch cfg.Backend {
	case "local":
		return blob.NewLocal(cfg.LocalDir)
	case "s3":
		return blob.NewS3(blob.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func healthz(redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
