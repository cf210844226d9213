package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-file-vault/internal/application/auth"
	fileapp "github.com/go-file-vault/internal/application/file"
	"github.com/go-file-vault/internal/application/session"
	"github.com/go-file-vault/internal/application/user"
	"github.com/go-file-vault/internal/config"
	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/infrastructure/awscfg"
	"github.com/go-file-vault/internal/infrastructure/disk"
	"github.com/go-file-vault/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-file-vault/internal/infrastructure/jwt"
	s3infra "github.com/go-file-vault/internal/infrastructure/s3"
	"github.com/go-file-vault/internal/infrastructure/smtp"
	"github.com/go-file-vault/internal/infrastructure/sqlstore"
	transporthttp "github.com/go-file-vault/internal/transport/http"
	"github.com/joho/godotenv"
)

// userRepo is satisfied by every record store backend.
type userRepo interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, email, code, newHash string, now time.Time) error
}

type fileRepo interface {
	Create(ctx context.Context, f *domain.File) error
	GetOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error)
	DeleteOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type recordStore struct {
	users userRepo
	files fileRepo
	ping  pinger
	close func() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := signingSecret(cfg)
	if err != nil {
		return err
	}
	tokens, err := jwtinfra.NewProvider(secret, cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	records, err := openRecordStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = records.close() }()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	deps := &transporthttp.Deps{
		Users: user.NewService(user.ServiceDeps{UserRepo: records.users, BcryptCost: cfg.BcryptCost}),
		Sessions: session.NewService(session.ServiceDeps{
			UserRepo: records.users, TokenProvider: tokens, BcryptCost: cfg.BcryptCost,
		}),
		Recovery: auth.NewService(auth.ServiceDeps{
			UserRepo: records.users, Mailer: smtp.NewMailer(cfg), OTPTTL: cfg.OTPTTL, BcryptCost: cfg.BcryptCost,
		}),
		Files: fileapp.NewService(fileapp.ServiceDeps{
			FileRepo: records.files, BlobStore: blobs, MaxSize: cfg.MaxUploadSize,
		}),
		Store: records.ping,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           transporthttp.NewRouter(cfg, deps),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"record_store", cfg.RecordStore, "blob_store", cfg.BlobStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// signingSecret returns JWT_SECRET, or in development a random per-process secret.
func signingSecret(cfg *config.Config) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate dev jwt secret: %w", err)
	}
	slog.Warn("JWT_SECRET not set; using a random development secret, tokens will not survive a restart")
	return secret, nil
}

func openRecordStore(ctx context.Context, cfg *config.Config) (*recordStore, error) {
	switch cfg.RecordStore {
	case config.RecordStoreDynamo:
		awsCfg, err := awscfg.Load(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := dynamo.NewClient(awsCfg, awscfg.Endpoint(cfg))
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
			return nil, fmt.Errorf("bootstrap dynamo tables: %w", err)
		}
		return &recordStore{
			users: dynamo.NewUserRepo(client, cfg.DynamoTables.Users),
			files: dynamo.NewFileRepo(client, cfg.DynamoTables.Files),
			ping:  dynamo.NewPinger(client, cfg.DynamoTables.Users),
			close: func() error { return nil },
		}, nil
	default:
		driver := sqlstore.DriverSQLite
		if cfg.RecordStore == config.RecordStorePostgres {
			driver = sqlstore.DriverPostgres
		}
		db, err := sqlstore.Open(ctx, driver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := sqlstore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &recordStore{
			users: sqlstore.NewUserRepo(db),
			files: sqlstore.NewFileRepo(db),
			ping:  db,
			close: db.Close,
		}, nil
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	if cfg.BlobStore == config.BlobStoreS3 {
		awsCfg, err := awscfg.Load(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s3infra.NewStore(s3infra.NewClient(awsCfg, awscfg.Endpoint(cfg)), cfg.S3BucketName), nil
	}
	store, err := disk.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	return store, nil
}
