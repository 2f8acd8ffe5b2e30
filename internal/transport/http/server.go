package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/database"
	"socialnet/internal/handler"
	"socialnet/internal/logger"
	"socialnet/internal/notify"
	"socialnet/internal/queue"
	"socialnet/internal/realtime"
	"socialnet/internal/redis"
	"socialnet/internal/repository"
	"socialnet/internal/repository/mongostore"
	"socialnet/internal/service"
	"socialnet/internal/thread"
	authmw "socialnet/internal/transport/http/middleware"
	"socialnet/internal/worker"
)

const (
	shutdownTimeout     = 10 * time.Second
	limiterCleanupEvery = 5 * time.Minute
)

// App holds the connections shared by the server and the workers.
type App struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *repository.Store
	redis *redis.Client

	db    *sqlx.DB
	mongo *mongo.Client
}

// Bootstrap connects the configured store and Redis. With migrate set the
// schema is brought up to date before returning.
func Bootstrap(ctx context.Context, cfg *config.Config, log zerolog.Logger, migrate bool) (*App, error) {
	app := &App{cfg: cfg, log: log}

	if err := app.openStore(ctx, migrate); err != nil {
		app.Close()
		return nil, err
	}

	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := rdb.Ping(ctx); err != nil {
		_ = rdb.Close()
		app.Close()
		return nil, err
	}
	app.redis = rdb
	log.Info().Msg("connected to redis")

	return app, nil
}

// Migrate applies schema changes for the configured store and exits.
func Migrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	app := &App{cfg: cfg, log: log}
	defer app.Close()
	return app.openStore(ctx, true)
}

func (a *App) openStore(ctx context.Context, migrate bool) error {
	storeLog := logger.For(a.log, "store")

	switch a.cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, a.cfg.MongoURI, a.cfg.MongoDB, storeLog)
		if err != nil {
			return err
		}
		a.mongo = client
		if migrate {
			if err := mongostore.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			storeLog.Info().Msg("mongo indexes ensured")
		}
		a.store = mongostore.New(db, storeLog)

	default:
		db, err := database.Connect(ctx, a.cfg.PostgresDSN(), storeLog)
		if err != nil {
			return err
		}
		a.db = db
		if migrate {
			if err := database.Migrate(db); err != nil {
				return err
			}
			storeLog.Info().Msg("postgres migrations applied")
		}
		a.store = repository.NewPostgresStore(db)
	}
	return nil
}

// Close releases every open connection.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.mongo.Disconnect(ctx)
	}
}

// Serve runs the HTTP API, the live relay and, when WORKER_COUNT > 0, the
// stream workers until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.cfg
	g, ctx := errgroup.WithContext(ctx)

	hub := realtime.NewHub(realtime.Options{
		PingInterval: cfg.LivePingInterval,
		PingTimeout:  cfg.LivePingTimeout,
		SendBuffer:   cfg.LiveSendBuffer,
	}, logger.For(a.log, "live"))

	var broadcaster notify.Broadcaster = hub
	if cfg.LiveRelay == config.RelayRedis {
		relay := realtime.NewRedisRelay(a.redis.Client, hub, logger.For(a.log, "relay"))
		broadcaster = relay
		g.Go(func() error { return relay.Run(ctx) })
	}

	publisher := queue.NewPublisher(a.redis.Client, logger.For(a.log, "publisher"))
	feedCache := cache.NewFeedCache(a.redis.Client, logger.For(a.log, "feed_cache"))
	threads := thread.NewReconstructor(a.store.Posts, a.store.Comments, a.store.Users, logger.For(a.log, "thread"))
	notifier := notify.NewNotifier(a.store.Follows, broadcaster, logger.For(a.log, "notify"))

	svcLog := logger.For(a.log, "service")
	userService := service.NewUserService(a.store.Users, a.store.Follows, publisher, svcLog)
	authService := service.NewAuthService(cfg)
	followService := service.NewFollowService(a.store.Follows, a.store.Users, publisher, svcLog)
	postService := service.NewPostService(a.store.Posts, threads, notifier, publisher, svcLog)
	commentService := service.NewCommentService(a.store.Comments, threads, notifier, publisher, svcLog)
	feedService := service.NewFeedService(feedCache, a.store.Posts, a.store.Follows, threads, svcLog)

	hLog := logger.For(a.log, "http")
	limiter := authmw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, authService, hLog),
		UserHandler:    handler.NewUserHandler(userService, followService, authService, hLog),
		FollowHandler:  handler.NewFollowHandler(followService, hLog),
		FeedHandler:    handler.NewFeedHandler(feedService, hLog),
		PostHandler:    handler.NewPostHandler(postService, hLog),
		CommentHandler: handler.NewCommentHandler(commentService, hLog),
		LiveHandler:    handler.NewLiveHandler(ctx, hub, cfg.JWTSecret, cfg.CORSOrigins, hLog),
		RateLimiter:    limiter,
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		Log:            hLog,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Str("relay", cfg.LiveRelay).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(limiterCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	})

	if cfg.WorkerCount > 0 {
		manager := a.newWorkerManager(feedCache)
		g.Go(func() error { return manager.Run(ctx) })
	}

	return g.Wait()
}

// RunWorkers consumes the event stream without serving HTTP.
func (a *App) RunWorkers(ctx context.Context) error {
	feedCache := cache.NewFeedCache(a.redis.Client, logger.For(a.log, "feed_cache"))
	return a.newWorkerManager(feedCache).Run(ctx)
}

func (a *App) newWorkerManager(feedCache cache.FeedCache) *worker.Manager {
	wLog := logger.For(a.log, "worker")
	h := worker.NewHandler(feedCache, a.store.Follows, a.store.Posts, a.store.Repairer, wLog)
	consumer := queue.NewConsumer(a.redis.Client, logger.For(a.log, "consumer"))

	mcfg := worker.DefaultManagerConfig()
	if a.cfg.WorkerCount > 0 {
		mcfg.WorkerCount = a.cfg.WorkerCount
	}
	return worker.NewManager(consumer, h, mcfg, wLog)
}
