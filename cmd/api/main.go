package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"trekmap/internal/auth"
	"trekmap/internal/db"
	"trekmap/internal/domain/storage"
	"trekmap/internal/media"
	"trekmap/internal/metrics"
	"trekmap/internal/moderation"
	"trekmap/internal/notifications"
	"trekmap/internal/ratelimiter"
	"trekmap/internal/ratings"
	"trekmap/internal/submission"

	"github.com/9ssi7/exponent"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func envInt(key string, def int) int {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %d\n", key, def)
	}
	return def
}

func envBool(key string, def bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %t\n", key, def)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		fmt.Printf("Invalid %s, defaulting to %s\n", key, def)
	}
	return def
}

func envString(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	return ratelimiter.Config{
		RequestsPerTimeFrame: envInt("RATELIMITER_REQUESTS_COUNT", 200),
		TimeFrame:            envDuration("RATELIMITER_TIME_FRAME", 5*time.Second),
		Enabled:              envBool("RATE_LIMITER_ENABLED", false),
	}
}

func loadConfig() config {
	return config{
		addr:   envString("ADDR", ":8080"),
		env:    envString("ENV", "development"),
		apiURL: envString("EXTERNAL_URL", "localhost:8080"),
		db: dbConfig{
			addr:         os.Getenv("DB_ADDR"),
			maxOpenConns: envInt("DB_MAX_OPEN_CONNS", 30),
			maxIdleTime:  envString("DB_MAX_IDLE_TIME", "15m"),
			autoMigrate:  envBool("DB_AUTO_MIGRATE", true),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				exp:    time.Hour * 24 * 3, // 3 days
				aud:    envString("AUTH_TOKEN_AUDIENCE", "trekmap"),
				iss:    envString("AUTH_TOKEN_ISSUER", "trekmap"),
			},
		},
		cloudinary: cloudinaryConfig{
			url:    os.Getenv("CLOUDINARY_URL"),
			folder: envString("CLOUDINARY_REVIEW_FOLDER", "reviews"),
			preset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
		},
		media: mediaConfig{
			interval:     envDuration("MEDIA_WORKER_INTERVAL", 5*time.Second),
			batchSize:    envInt("MEDIA_WORKER_BATCH", 10),
			maxAttempts:  envInt("MEDIA_WORKER_MAX_ATTEMPTS", 5),
			backoff:      envDuration("MEDIA_WORKER_BACKOFF", 10*time.Second),
			lease:        envDuration("MEDIA_WORKER_LEASE", 5*time.Minute),
			maxDimension: envInt("MEDIA_MAX_DIMENSION", media.DefaultMaxDimension),
			quality:      envInt("MEDIA_JPEG_QUALITY", media.DefaultQuality),
		},
		expo: expoConfig{
			accessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	// Configure the encoder to be a console encoder with color
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := level.Set(lvl); err != nil {
			return nil, err
		}
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)

	return logger.Sugar(), nil
}

var version = "0.3.0"

//	@title			Trekmap API
//	@description	Review moderation and traveller points for the Trekmap travel directory.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.basic	BasicAuth
//	@description

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg := loadConfig()

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	// Database
	if cfg.db.autoMigrate {
		v, err := db.Migrate(cfg.db.addr)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infow("database schema up to date", "version", v)
	}

	pool, err := db.New(
		cfg.db.addr,
		int32(cfg.db.maxOpenConns),
		cfg.db.maxIdleTime,
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	//storage
	store := storage.NewContainer(pool)

	//cloudinary
	cld, err := cloudinary.NewFromURL(cfg.cloudinary.url)
	if err != nil {
		logger.Fatal(err)
	}

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		logger.Fatal(err)
	}

	// push notifications
	expo := exponent.NewClient(exponent.WithAccessToken(cfg.expo.accessToken))
	async := notifications.NewAsync(logger)
	notifier := notifications.NewReviewNotifier(notifications.NewExpoAdapter(expo), store.PushTokens)

	// services
	aggregator := ratings.NewAggregator(store.Places, logger)
	moderationSvc := moderation.NewService(store, notifier, async, m, logger)
	submissionSvc := submission.NewService(store, aggregator, logger)

	worker := media.NewWorker(
		store.ReviewImages,
		media.NewCompressor(cfg.media.maxDimension, cfg.media.quality),
		media.NewCloudinaryUploader(cld),
		media.WorkerConfig{
			Interval:    cfg.media.interval,
			BatchSize:   cfg.media.batchSize,
			Lease:       cfg.media.lease,
			MaxAttempts: cfg.media.maxAttempts,
			Backoff:     cfg.media.backoff,
			Folder:      cfg.cloudinary.folder,
			Preset:      cfg.cloudinary.preset,
		},
		m,
		logger,
	)

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
		cfg.auth.token.exp,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		moderation:    moderationSvc,
		submissions:   submissionSvc,
		notifications: async,
		registry:      registry,
	}
	app.background = append(app.background,
		worker.Run,
		app.pruneStalePushTokensDaily,
		func(ctx context.Context) { rateLimiter.Cleanup(ctx, cfg.rateLimiter.TimeFrame) },
	)

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		return pool.Stat().TotalConns()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
