package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/blobs"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/config"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/places"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reminders"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/reviews"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/server"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/spf13/afero"
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
		Use:   "cinetrack-api",
		Short: "CineTrack bookmarks, reviews and catalog backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file (required when set explicitly)")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("store-driver", defaults.GetString("store.driver"), "Document store driver (sqlite, mongo)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("mongo-uri", defaults.GetString("mongo.uri"), "MongoDB connection URI")
	cmd.PersistentFlags().String("mongo-database", defaults.GetString("mongo.database"), "MongoDB database name")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Rotated log file path in addition to stderr")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("catalog-api-key", "", "Movie catalog API key")
	cmd.PersistentFlags().String("places-api-key", "", "Places API key for cinema lookups")
	cmd.PersistentFlags().String("blobs-root", defaults.GetString("blobs.root"), "Directory for uploaded images")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "store.driver", "store-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "mongo.uri", "mongo-uri")
	bindFlag(cmd, "mongo.database", "mongo-database")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "catalog.api_key", "catalog-api-key")
	bindFlag(cmd, "places.api_key", "places-api-key")
	bindFlag(cmd, "blobs.root", "blobs-root")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(envFile, cmd.PersistentFlags().Changed("env-file")); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	documentStore, closeStore, err := openDocumentStore(signalCtx, appConfig, db, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	accounts, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	secret := []byte(appConfig.AuthSigningSecret)
	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: secret,
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: secret,
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		CookieName:    appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	bookmarkRepository, err := bookmarks.NewRepository(bookmarks.RepositoryConfig{Store: documentStore, Logger: logger})
	if err != nil {
		return err
	}

	storage, err := blobs.NewDiskStorage(appConfig.BlobsRoot, appConfig.BlobsPublicBaseURL, logger)
	if err != nil {
		return err
	}

	reviewService, err := reviews.NewService(reviews.ServiceConfig{Store: documentStore, Uploader: storage, Logger: logger})
	if err != nil {
		return err
	}

	dispatcher := server.NewRealtimeDispatcher()
	scheduler := reminders.NewScheduler(reminders.SchedulerConfig{
		Deliver: server.ReminderDelivery(dispatcher),
		Logger:  logger,
	})
	defer scheduler.Close()

	dependencies := server.Dependencies{
		Sessions:       sessionValidator,
		Tokens:         tokenIssuer,
		Accounts:       accounts,
		Bookmarks:      bookmarkRepository,
		Reviews:        reviewService,
		Blobs:          storage,
		Media:          afero.NewHttpFs(storage.Filesystem()).Dir(""),
		MediaPath:      appConfig.BlobsPublicBaseURL,
		Reminders:      scheduler,
		Realtime:       dispatcher,
		ResetSender:    logResetSender(logger),
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	}

	if appConfig.CatalogAPIKey != "" {
		catalogClient, err := catalog.NewClient(catalog.ClientConfig{
			BaseURL:           appConfig.CatalogBaseURL,
			APIKey:            appConfig.CatalogAPIKey,
			RequestsPerSecond: appConfig.CatalogRequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		dependencies.Catalog = catalogClient
	} else {
		logger.Warn("catalog api key not configured; catalog endpoints disabled")
	}

	if appConfig.PlacesAPIKey != "" {
		placesClient, err := places.NewClient(places.ClientConfig{
			BaseURL: appConfig.PlacesBaseURL,
			APIKey:  appConfig.PlacesAPIKey,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		dependencies.Places = placesClient
	} else {
		logger.Warn("places api key not configured; cinema endpoints disabled")
	}

	handler, err := server.NewHTTPHandler(dependencies)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress), zap.String("store_driver", appConfig.StoreDriver))
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

// openDocumentStore returns the configured document store; accounts always stay in SQLite.
func openDocumentStore(ctx context.Context, appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger) (store.Store, func(), error) {
	if appConfig.StoreDriver != config.StoreDriverMongo {
		documentStore, err := store.NewGormStore(store.GormStoreConfig{Database: db, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return documentStore, func() {}, nil
	}

	client, mongoDatabase, err := database.OpenMongo(ctx, appConfig.MongoURI, appConfig.MongoDatabase, logger)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	documentStore, err := store.NewMongoStore(store.MongoStoreConfig{Database: mongoDatabase, Logger: logger})
	if err != nil {
		closeClient()
		return nil, nil, err
	}
	if err := documentStore.EnsureIndexes(ctx, bookmarks.MovieCollection, bookmarks.TVShowCollection, reviews.Collection); err != nil {
		closeClient()
		return nil, nil, err
	}
	return documentStore, closeClient, nil
}

// logResetSender stands in for an email provider by logging that a reset token was issued.
func logResetSender(logger *zap.Logger) server.PasswordResetSender {
	return func(_ context.Context, email, token string) error {
		logger.Info("password reset token issued", zap.String("email", email))
		logger.Debug("password reset token", zap.String("token", token))
		return nil
	}
}
