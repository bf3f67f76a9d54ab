package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trekmap/docs" //this is required to generate swagger docs
	"trekmap/internal/auth"
	"trekmap/internal/domain/storage"
	"trekmap/internal/moderation"
	"trekmap/internal/notifications"
	"trekmap/internal/ratelimiter"
	"trekmap/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	moderation    *moderation.Service
	submissions   *submission.Service
	notifications *notifications.Async
	registry      *prometheus.Registry
	background    []func(ctx context.Context)
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	auth        authConfig
	cloudinary  cloudinaryConfig
	media       mediaConfig
	expo        expoConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	exp    time.Duration
	aud    string
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleTime  string
	autoMigrate  bool
}

type cloudinaryConfig struct {
	url    string
	folder string
	preset string
}

type mediaConfig struct {
	interval     time.Duration
	batchSize    int
	maxAttempts  int
	backoff      time.Duration
	lease        time.Duration
	maxDimension int
	quality      int
}

type expoConfig struct {
	accessToken string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	if app.config.rateLimiter.Enabled {
		r.Use(app.RateLimiterMiddleware)
	}

	//Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		if app.registry != nil {
			r.With(app.BasicAuthMiddleware()).Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		}

		// Public routes
		r.Get("/places/{placeID}/reviews", app.getPlaceReviewsHandler)

		r.Route("/reviews", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.createReviewHandler)
			r.Patch("/{reviewID}", app.updateReviewHandler)
			r.Delete("/{reviewID}", app.deleteReviewHandler)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/points", app.getMyPointsHandler)
			r.Put("/push-tokens", app.registerPushTokenHandler)
			r.Delete("/push-tokens", app.removePushTokenHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RequireAdmin)

			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", app.listModerationQueueHandler)
				r.Route("/{reviewID}", func(r chi.Router) {
					r.Patch("/status", app.changeReviewStatusHandler)
					r.Post("/approve", app.approveReviewHandler)
					r.Get("/history", app.getReviewHistoryHandler)
					r.Get("/images", app.getReviewImagesHandler)
				})
			})
			r.Patch("/review-images/{imageID}/status", app.changeReviewImageStatusHandler)
			r.Post("/places/{placeID}/score", app.scorePlaceHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	bgDone := app.startBackground(bgCtx)

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		stopBackground()
		<-bgDone
		return err
	}

	err = <-shutdown

	stopBackground()
	<-bgDone
	app.notifications.Wait()

	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
