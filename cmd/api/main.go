package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/account"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/conversation"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-budget-go/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/sweeper"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-budget-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-budget-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-budget-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-budget-go")

	cfg, err := config.FromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	// init db
	sqlxDB, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlxDB.Close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := userrepo.NewUserRepo(sqlxDB)
	if err := users.EnsureTable(ctx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}

	clock := clockwork.NewRealClock()
	tokens, closeTokens, err := tokenBackend(ctx, cfg, sqlxDB, clock, sugar)
	if err != nil {
		sugar.Fatalf("token backend: %v", err)
	}
	defer closeTokens()

	store := session.NewStore(tokens, clock)
	userSvc := user.NewService(users, user.BcryptHasher{Cost: cfg.BcryptCost})
	engine := conversation.NewEngine(clock, cfg.ConversationTTL)
	cookies := auth.Cookies{Domain: cfg.CookieDomain, Secure: cfg.Production()}

	// mount http server
	handler := router.RegisterRoutes(sugar, router.Deps{
		Gate:          auth.NewGate(store, userSvc, cookies, sugar),
		Account:       account.NewHandler(userSvc, store, cookies, sugar),
		Chat:          conversation.NewHandler(engine, sugar),
		AllowedOrigin: cfg.AllowedOrigin,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sw := sweeper.New(cfg.SweepInterval, 2, clock, sugar,
		sweeper.Job{Name: "tokens", Run: store.SweepExpired},
		sweeper.Job{Name: "conversations", Run: func(context.Context) (int64, error) {
			return engine.Evict(), nil
		}},
	)
	go sw.Run(ctx)

	// run server in background
	go func() {
		sugar.Infow("listening", "port", cfg.Port, "env", cfg.Env, "token_backend", cfg.TokenBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// tokenBackend picks where session tokens live. The returned func releases it.
func tokenBackend(ctx context.Context, cfg config.Config, db *sqlx.DB, clock clockwork.Clock, logger *zap.SugaredLogger) (session.Repository, func(), error) {
	switch cfg.TokenBackend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Infow("session tokens stored in redis", "addr", opts.Addr)
		return sessionrepo.NewRedisTokenRepo(rc, clock), func() { _ = rc.Close() }, nil
	default:
		r := sessionrepo.NewTokenRepo(db)
		if err := r.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure access_tokens table: %w", err)
		}
		logger.Infow("session tokens stored in postgres")
		return r, func() {}, nil
	}
}
