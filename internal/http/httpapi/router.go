package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voicehub/internal/http/handlers"
	"voicehub/internal/middleware"
)

// Options configures the cross-cutting middleware stack.
type Options struct {
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	Limiter        middleware.Limiter
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.Locale(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/plans", app.ListPlans)

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/yookassa", app.YooKassaWebhook)
			r.Post("/stripe", app.StripeWebhook)
		})

		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(middleware.RateLimit(opts.Limiter, opts.Logger))
			}
			r.Use(middleware.AuthJWT(opts.JWTSecret, opts.JWTIssuer))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", app.GetWallet)
				r.Post("/deposit", app.Deposit)
				r.Post("/charge", app.Charge)
			})
			r.Route("/usage", func(r chi.Router) {
				r.Get("/", app.GetUsage)
				r.Post("/consume", app.ConsumeUsage)
			})
		})
	})

	return r
}
