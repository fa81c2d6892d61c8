package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mini-app-service/conf"
	"mini-app-service/controller"
	"mini-app-service/controller/middleware"
	"mini-app-service/database"
	"mini-app-service/fetcher"
	"mini-app-service/models/dao"
	"mini-app-service/service/approval_service"
	"mini-app-service/service/points_service"
	"mini-app-service/service/verification_service"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ENV string

func init() {
	flag.StringVar(&ENV, "env", "loc", "Environment: loc/mainnet/testnet/example")
	flag.StringVar(&conf.ConfigFile, "config", "", "Config file path, overrides the environment default")
}

// @title           Mini App Service API
// @version         1.0
// @description     Developer verification and mini app approval API

// @host      localhost:7290
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes https http

func main() {
	app, cleanup := initAll()
	defer cleanup()

	go startServer(app.srv)
	log.Info().Str("port", conf.Cfg.Server.Port).Msg("API service started")

	waitForShutdown()

	log.Info().Msg("Shutting down...")
	shutdownServer(app.srv)
	log.Info().Msg("Server exited")
}

type application struct {
	srv     *http.Server
	awarder *points_service.Awarder
	done    chan struct{}
}

// initEnv initialize environment and logger
func initEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	env, err := conf.ParseEnvironment(ENV)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -env")
	}
	conf.SystemEnvironmentEnum = env
}

func initLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// initAll initialize all components
func initAll() (*application, func()) {
	flag.Parse()
	initEnv()

	if err := conf.InitConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	initLogger(conf.Cfg.Log.Level)
	log.Info().
		Str("env", ENV).
		Str("config", conf.GetYaml()).
		Str("database", conf.Cfg.Database.Type).
		Msg("Configuration loaded")

	if err := initDatabase(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	vc := conf.Cfg.Verification
	client := fetcher.NewClient(fetcher.Options{
		Timeout:      vc.FetchTimeout(),
		ManifestPath: vc.ManifestPath,
		IconPath:     vc.IconPath,

		AllowPrivateNetworks: vc.AllowPrivateNetworks,
	})

	verification := verification_service.NewVerificationService(dao.NewDeveloperDAO(nil), client, verification_service.Options{
		ChallengePath:       vc.ChallengePath,
		ChallengeTTL:        vc.ChallengeTTL(),
		AllowHTTP:           vc.AllowInsecureHttp,
		AdminIdentities:     conf.Cfg.Auth.AdminIdentities,
		ModeratorIdentities: conf.Cfg.Auth.ModeratorIdentities,
	})

	points := points_service.NewPointsService(dao.NewPointsDAO(nil))
	awarder := points_service.NewAwarder(points, conf.Cfg.Points.QueueSize)
	awarder.Start()

	approval := approval_service.NewApprovalService(dao.NewAppDAO(nil), verification, client, awarder, approval_service.Options{
		DefaultOwner:     vc.DefaultOwner,
		AllowHTTP:        vc.AllowInsecureHttp,
		SubmissionPoints: conf.Cfg.Points.AppSubmission,
	})

	done := make(chan struct{})
	limiter := middleware.NewRateLimiter(conf.Cfg.RateLimit.RequestsPerSecond, conf.Cfg.RateLimit.Burst)
	limiter.StartCleanup(10*time.Minute, done)

	router := controller.SetupRouter(controller.RouterConfig{
		Verification:   verification,
		Approval:       approval,
		Points:         points,
		RateLimiter:    limiter,
		JwtSecret:      conf.Cfg.Auth.JwtSecret,
		PathPrefix:     conf.Cfg.Server.PathPrefix,
		SwaggerBaseUrl: conf.Cfg.Server.SwaggerBaseUrl,
	})

	app := &application{
		srv: &http.Server{
			Addr:              ":" + conf.Cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		awarder: awarder,
		done:    done,
	}

	cleanup := func() {
		close(app.done)
		// drain queued awards before the ledger store goes away
		app.awarder.Stop()
		if database.DB != nil {
			database.DB.Close()
		}
	}
	return app, cleanup
}

// initDatabase initialize database based on configuration
func initDatabase() error {
	dbType := database.DBType(conf.Cfg.Database.Type)

	switch dbType {
	case database.DBTypePebble:
		return database.InitDatabase(dbType, &database.PebbleConfig{
			DataDir: conf.Cfg.Database.DataDir,
		})
	case database.DBTypePostgres:
		return database.InitDatabase(dbType, &database.GormConfig{
			Dsn:          conf.Cfg.Database.Dsn,
			MaxOpenConns: conf.Cfg.Database.MaxOpenConns,
			MaxIdleConns: conf.Cfg.Database.MaxIdleConns,
		})
	default:
		return errors.Errorf("unsupported database type: %s", dbType)
	}
}

// startServer start HTTP server
func startServer(srv *http.Server) {
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// waitForShutdown wait for shutdown signal
func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

// shutdownServer gracefully shutdown server
func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
