package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guarding reverse proxy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath, envFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func serve(ctx context.Context, cfg edgeConfig) error {
	log, logCloser, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	builder := goGuard.New().
		WithConfig(cfg.Guard).
		WithLogger(log).
		WithAuditSink(goGuard.NewLogrusSink(log.WithField("component", "audit")))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder.WithRedis(rdb)
	}

	if cfg.Guard.Store.Backend == goGuard.StorePostgres {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		builder.WithPostgres(pool)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build guard: %w", err)
	}
	defer engine.Close()

	if cfg.Postgres.EnsureSchema {
		if err := engine.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}

	handler, err := newHandler(engine, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"listen": cfg.Listen, "upstream": cfg.Upstream}).Info("goguard-edge: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("goguard-edge: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler routes /healthz and /metrics locally and everything else through
// the guard to the upstream.
func newHandler(engine *goGuard.Engine, cfg edgeConfig, log logrus.FieldLogger) (http.Handler, error) {
	target, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithField("path", r.URL.Path).WithError(err).Warn("goguard-edge: upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	opts := middleware.Options{
		CookieName:         cfg.HTTP.CookieName,
		LoginURL:           cfg.HTTP.LoginURL,
		PendingApprovalURL: cfg.HTTP.PendingApprovalURL,
		MaintenanceURL:     cfg.HTTP.MaintenanceURL,
		TrustForwardedFor:  cfg.HTTP.TrustForwardedFor,
	}

	reg := prom.NewRegistry()
	reg.MustRegister(
		prometheus.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if cfg.HTTP.LogoutPath != "" {
		mux.Handle("POST "+cfg.HTTP.LogoutPath, logoutHandler(engine, opts, log))
	}
	mux.Handle("/", middleware.Guard(engine, opts)(proxy))
	return mux, nil
}

func logoutHandler(engine *goGuard.Engine, opts middleware.Options, log logrus.FieldLogger) http.Handler {
	name := opts.CookieName
	if name == "" {
		name = middleware.DefaultCookieName
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			if err := engine.Logout(r.Context(), c.Value); err != nil && !errors.Is(err, goGuard.ErrSessionID) {
				log.WithError(err).Warn("goguard-edge: logout failed")
				http.Error(w, "logout failed", http.StatusServiceUnavailable)
				return
			}
		}
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: r.TLS != nil})
		if opts.LoginURL != "" {
			http.Redirect(w, r, opts.LoginURL, http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
