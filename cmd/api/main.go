package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voicehub/internal/adapter/repo"
	"voicehub/internal/http/handlers"
	httpapi "voicehub/internal/http/httpapi"
	"voicehub/internal/infra"
	"voicehub/internal/infra/geoip"
	"voicehub/internal/middleware"
	"voicehub/internal/plans"
	"voicehub/internal/quota"
	"voicehub/internal/wallet"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, infra.NewLogger(cfg.AppEnv, "sql"))

	catalog, err := plans.FromJSON(cfg.WalletCurrency, cfg.PlanCatalog)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid plan catalog")
	}

	walletSvc := wallet.NewService(repo.NewLedgerStore(runner), infra.NewLogger(cfg.AppEnv, "wallet"), wallet.Options{
		Currency:       cfg.WalletCurrency,
		HistoryDefault: cfg.HistoryDefault,
		HistoryMax:     cfg.HistoryMax,
	})
	tracker := quota.NewTracker(repo.NewUsageStore(runner), catalog, infra.NewLogger(cfg.AppEnv, "quota"), nil)

	app := handlers.NewApp(walletSvc, tracker, catalog, logger)
	app.Ping = dbpool.Ping
	app.YooKassaToken = cfg.YooKassaWebhookKey
	app.StripeSecret = cfg.StripeWebhookKey

	var limiter middleware.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMin, time.Minute)
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, rate limiting per instance")
	} else if redisClient != nil {
		defer redisClient.Close()
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMin, time.Minute)
	}

	var lookup middleware.CountryLookup
	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	} else if geo != nil {
		defer geo.Close()
		lookup = geo.Lookup
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  lookup,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         infra.NewLogger(cfg.AppEnv, "http"),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
