package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/config"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/database"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/server"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civic-api",
		Short: "Civic proposals backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the demo proposals into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the environment is read")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-url", defaults.GetString("database.url"), "Database URL (sqlite://path or postgres://...)")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session lifetime in minutes")
	flags.String("redis-address", "", "Redis address for the change event stream")
	flags.Bool("seed-demo", defaults.GetBool("seed.demo"), "Load demo proposals when the store is empty")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "seed.demo", "seed-demo")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	return nil
}

// appRuntime holds the long-lived components shared by the server and seed commands.
type appRuntime struct {
	config   config.AppConfig
	logger   *zap.Logger
	database *gorm.DB
	users    *users.Service
	store    *proposals.Store
}

func (r *appRuntime) close() {
	if sqlDB, err := r.database.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func bootstrap(ctx context.Context) (*appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(appConfig.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return nil, err
	}

	journal, err := proposals.NewGormJournal(db)
	if err != nil {
		return nil, err
	}

	store, err := proposals.NewStore(ctx, proposals.StoreConfig{
		Clock:      time.Now,
		IDProvider: proposals.NewUUIDProvider(),
		Journal:    journal,
		Users:      userService,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &appRuntime{
		config:   appConfig,
		logger:   logger,
		database: db,
		users:    userService,
		store:    store,
	}, nil
}

func runSeed(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	inserted, err := rt.store.Seed(ctx, proposals.DemoProposals())
	if err != nil {
		return err
	}
	rt.logger.Info("demo proposals seeded", zap.Int("inserted", inserted))
	return nil
}

func runServer(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	appConfig := rt.config
	logger := rt.logger

	if appConfig.SeedDemo {
		inserted, err := rt.store.Seed(ctx, proposals.DemoProposals())
		if err != nil {
			return err
		}
		logger.Info("demo proposals seeded", zap.Int("inserted", inserted))
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}
	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        appConfig.SessionIssuer,
		TokenTTL:      appConfig.SessionTTL,
	})

	dispatcher := events.NewDispatcher()
	publishers := []events.Publisher{dispatcher}
	if appConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}
		streamPublisher, err := events.NewRedisStreamPublisher(redisClient, appConfig.RedisStream)
		if err != nil {
			return err
		}
		publishers = append(publishers, streamPublisher)
		logger.Info("redis event stream enabled",
			zap.String("address", appConfig.RedisAddress),
			zap.String("stream", appConfig.RedisStream))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:          rt.store,
		Sessions:       sessionValidator,
		Tokens:         tokenIssuer,
		Identities:     rt.users,
		Publisher:      events.NewFanout(logger, publishers...),
		Subscriber:     dispatcher,
		Logger:         logger,
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		AdminMarker:    appConfig.AdminMarker,
		RateLimit: server.RateLimit{
			RequestsPerSecond: appConfig.RateLimitRPS,
			Burst:             appConfig.RateLimitBurst,
		},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
