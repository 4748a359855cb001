// Package server initializes and runs the cookie-signing session proxy.
// It loads the organization registry, derives per-organization signing keys,
// wires the HTTP surface with its middleware chain and handles graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portalkeeper/portalkeeper/internal/config"
	"github.com/portalkeeper/portalkeeper/internal/cookiesign"
	"github.com/portalkeeper/portalkeeper/internal/crypto"
	"github.com/portalkeeper/portalkeeper/internal/server/handlers"
	"github.com/portalkeeper/portalkeeper/internal/server/middleware"
	"github.com/portalkeeper/portalkeeper/internal/server/upstream"
)

const shutdownTimeout = 10 * time.Second

// SMS endpoint'ы дополнительно ограничиваются на прокси:
// 10 запросов с IP за 5 минут поверх cooldown'а backend'а
const (
	smsRateLimit  = 10
	smsRateWindow = 5 * time.Minute
)

// App is the assembled proxy server.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	handler http.Handler
	limiter *middleware.RateLimiter
	version string
}

// NewApp загружает конфигурацию и собирает все зависимости
func NewApp(configPath, version string) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}

	orgs := make(map[string]*handlers.Org, len(cfg.Organizations))
	for i := range cfg.Organizations {
		org := &cfg.Organizations[i]

		// Ключ подписи выводится из shared secret и slug - у каждой
		// организации свой, компрометация одного не задевает остальные
		key, err := crypto.DeriveSigningKey(org.SecretKey, org.Slug)
		if err != nil {
			return nil, fmt.Errorf("signing key for %q: %w", org.Slug, err)
		}

		orgs[org.Slug] = &handlers.Org{
			Config:   org,
			Signer:   cookiesign.New(key),
			Upstream: upstream.New(org.Host, org.RequestTimeout()),
		}
	}

	proxy := handlers.NewProxyHandler(logger, orgs)
	health := handlers.NewHealthHandler(logger, version)
	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(smsRateLimit, smsRateWindow, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/{org}/account", proxy.Register)
	mux.HandleFunc("POST /api/v1/{org}/account/password/change", proxy.ChangePassword)
	mux.HandleFunc("POST /api/v1/{org}/account/password/reset", proxy.ResetPassword)
	mux.HandleFunc("POST /api/v1/{org}/account/token", proxy.ObtainToken)
	mux.HandleFunc("POST /api/v1/{org}/account/token/validate", proxy.ValidateToken)
	mux.HandleFunc("GET /api/v1/{org}/account/session", proxy.RadiusSessions)
	mux.Handle("POST /api/v1/{org}/account/phone/token",
		limiter.Middleware(http.HandlerFunc(proxy.CreatePhoneToken)))
	mux.HandleFunc("GET /api/v1/{org}/account/phone/token/status", proxy.PhoneTokenStatus)
	mux.Handle("POST /api/v1/{org}/account/phone/verify",
		limiter.Middleware(http.HandlerFunc(proxy.VerifyPhoneToken)))
	mux.HandleFunc("POST /api/v1/{org}/account/phone/change", proxy.ChangePhoneNumber)
	mux.HandleFunc("GET /api/v1/{org}/payment/status/{paymentId}", proxy.PaymentStatus)
	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// recovery -> logging -> metrics -> router
	var handler http.Handler = mux
	handler = metrics.Instrument(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/healthz", "/metrics"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &App{
		config:  cfg,
		logger:  logger,
		handler: handler,
		limiter: limiter,
		version: version,
	}, nil
}

// Run запускает HTTP сервер и блокируется до SIGINT/SIGTERM
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.limiter.Stop()

	srv := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: a.handler,
	}

	errC := make(chan error, 1)
	go func() {
		a.logger.Info("Starting session proxy",
			slog.String("addr", a.config.ListenAddr),
			slog.String("version", a.version),
			slog.Int("organizations", len(a.config.Organizations)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	a.logger.Info("Server stopped")
	return nil
}
