package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"qualityportal/internal/ratelimit"
	"qualityportal/pkg/auth"
	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
	"qualityportal/pkg/storage"
	"qualityportal/pkg/store"
	"qualityportal/services/portal/internal/config"
	"qualityportal/services/portal/internal/dashboard"
	"qualityportal/services/portal/internal/documents"
	"qualityportal/services/portal/internal/notify"
	"qualityportal/services/portal/internal/security"
	"qualityportal/services/portal/internal/session"
	"qualityportal/services/portal/internal/upload"
	"qualityportal/services/portal/internal/views"
)

// BlobPrefix is where the local file store serves signed URLs.
const BlobPrefix = "/blobs"

// App is the application state shared by every request handler.
type App struct {
	Catalog   *catalog.Catalog
	Documents *documents.Manager
	Uploads   *upload.Pipeline
	Progress  *upload.Hub
	Dashboard *dashboard.Manager
	Sessions  *session.Manager
	Notices   *notify.Center
	Views     *views.Renderer

	// LoginLimiter is nil when Redis is not configured.
	LoginLimiter *ratelimit.FixedWindowLimiter
	// Alerts is nil when Redis is not configured.
	Alerts *security.AuditAlerter
	// Blobs serves signed URLs of the local file store; nil with MinIO.
	Blobs http.Handler

	Logger *slog.Logger

	closers []io.Closer
}

// Deps overrides collaborators New would otherwise build from config.
type Deps struct {
	Store   store.Store
	Objects storage.ObjectStore
	Redis   *redis.Client
	Now     func() time.Time
}

// New wires the portal from configuration.
func New(ctx context.Context, cfg config.FileConfig, deps Deps, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Catalog: catalog.New(), Notices: notify.NewCenter(), Progress: upload.NewHub(), Logger: logger}

	loc, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	dataStore := deps.Store
	if dataStore == nil {
		dataStore, err = a.openStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	objects := deps.Objects
	if objects == nil {
		objects, err = a.openObjects(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	if fs, ok := objects.(*storage.FileStore); ok {
		a.Blobs = http.StripPrefix(BlobPrefix, fs.Handler())
	}

	rdb := deps.Redis
	if rdb == nil && cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.closers = append(a.closers, rdb)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	var (
		profiles store.ProfileStore
		revoker  store.TokenRevoker
	)
	if rdb != nil {
		profiles = store.NewRedisProfileStore(rdb, cfg.RedisPrefix)
		revoker = store.NewRedisTokenRevoker(rdb, cfg.RedisPrefix)
		a.Alerts = security.NewAuditAlerter(rdb, cfg.RedisPrefix+":alerts")
		if cfg.LoginRateLimitPerMinute > 0 {
			a.LoginLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, cfg.RedisPrefix+":ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				a.Close()
				return nil, err
			}
		}
	} else {
		logger.Warn("redis not configured; sessions are kept in memory")
		profiles = store.NewMemoryProfileStore()
		revoker = store.NewMemoryTokenRevoker()
	}

	ttl, _ := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	leeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	tokens, err := store.NewJWTSessionStore(cfg.SessionSecret, ttl, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   leeway,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	if err := dataStore.SyncCatalog(ctx, a.Catalog.All()); err != nil {
		a.Close()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	directory := auth.NewDirectory(dataStore)
	if err := directory.Provision(ctx, Seeds(cfg.Accounts)); err != nil {
		a.Close()
		return nil, fmt.Errorf("provision accounts: %w", err)
	}

	a.Documents, err = documents.New(documents.Config{Store: dataStore, Objects: objects, Location: loc, Now: deps.Now})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Uploads = upload.NewPipeline(a.Documents)
	a.Dashboard = dashboard.New(a.Documents, a.Catalog)
	a.Sessions = session.NewManager(directory, tokens, profiles)
	a.Views, err = views.New()
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		a.Logger.Warn("databaseURL not configured; document metadata is kept in memory")
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	a.closers = append(a.closers, s)
	return s, nil
}

func (a *App) openObjects(cfg config.FileConfig) (storage.ObjectStore, error) {
	if cfg.MinioEndpoint == "" {
		a.Logger.Warn("minioEndpoint not configured; storing blobs on local disk", "dir", cfg.StorageDir)
		fs, err := storage.NewFileStore(cfg.StorageDir, cfg.BaseURL+BlobPrefix, cfg.SessionSecret)
		if err != nil {
			return nil, fmt.Errorf("init file store: %w", err)
		}
		return fs, nil
	}
	ms, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.MinioPublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return ms, nil
}

// Seeds converts configured accounts into directory seeds.
func Seeds(accounts []config.AccountConfig) []auth.Seed {
	seeds := make([]auth.Seed, 0, len(accounts))
	for _, acc := range accounts {
		seeds = append(seeds, auth.Seed{
			Username:   acc.Username,
			Password:   acc.Password,
			AccessCode: acc.AccessCode,
			User: domain.User{
				ID:          acc.UserID,
				Name:        acc.Name,
				Email:       acc.Email,
				Role:        domain.UserRole(acc.Role),
				Permissions: acc.Permissions,
			},
		})
	}
	return seeds
}

// RunJanitor drops expired session cache entries and empty toast queues
// every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sessions.Sweep()
			if n := a.Notices.Prune(); n > 0 {
				a.Logger.Debug("pruned toast queues", "count", n)
			}
		}
	}
}

// Ready checks the metadata store and the object store.
func (a *App) Ready(ctx context.Context) error {
	return a.Documents.Ping(ctx)
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
