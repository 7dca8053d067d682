package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gift-concierge/handler"
	"gift-concierge/internal/analytics"
	"gift-concierge/internal/integrations/paramstore"
	"gift-concierge/internal/integrations/recommend"
	"gift-concierge/internal/observability"
	"gift-concierge/internal/repository"
	"gift-concierge/internal/wizard"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	backendURL := mustEnv("BACKEND_URL")
	paramPrefix := os.Getenv("PARAM_PREFIX")
	analyticsTable := os.Getenv("ANALYTICS_TABLE")
	listenAddr := os.Getenv("LISTEN_ADDR")
	metricsNamespace := envString("METRICS_NAMESPACE", "gift_concierge")
	maxHistoryRounds := envInt("MAX_HISTORY_ROUNDS", 20)
	maxQueryLen := envInt("MAX_QUERY_LENGTH", 300)
	dialogTTL := envDuration("DIALOG_TTL", 30*time.Minute)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Metrics ----
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(promRegistry, metricsNamespace)

	// ---- Clients ----
	var backendOpts []recommend.Option
	if paramPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		backendOpts = append(backendOpts, recommend.WithParamStoreToken(ssmClient, paramPrefix))
	}
	backend, err := recommend.NewClient(backendURL, backendOpts...)
	if err != nil {
		slog.Error("failed to create backend client", "err", err)
		os.Exit(1)
	}

	sinks := []analytics.NamedSink{{Name: "backend", Sink: backend}}
	var handlerOpts []handler.Option
	if analyticsTable != "" {
		store, err := repository.New(awsdynamodb.NewFromConfig(cfg), analyticsTable)
		if err != nil {
			slog.Error("failed to create analytics store", "err", err)
			os.Exit(1)
		}
		sinks = append(sinks, analytics.NamedSink{Name: "dynamodb", Sink: store})
		handlerOpts = append(handlerOpts, handler.WithAnalytics(store))
	}
	dispatcher, err := analytics.NewDispatcher(sinks,
		analytics.WithLogger(logger),
		analytics.WithErrorHook(metrics.AnalyticsError),
	)
	if err != nil {
		slog.Error("failed to create analytics dispatcher", "err", err)
		os.Exit(1)
	}

	// ---- Dialogs ----
	registry, err := wizard.NewRegistry(func() (*wizard.Controller, error) {
		return wizard.NewController(backend,
			wizard.WithTracker(dispatcher),
			wizard.WithObserver(metrics.ObserveEvent),
			wizard.WithLogger(logger),
			wizard.WithMaxHistoryRounds(maxHistoryRounds),
			wizard.WithMaxQueryLength(maxQueryLen),
		)
	}, dialogTTL, logger)
	if err != nil {
		slog.Error("failed to create dialog registry", "err", err)
		os.Exit(1)
	}
	metrics.RegisterActiveDialogs(metricsNamespace, registry.Len)
	registry.StartJanitor(ctx, time.Minute)

	// ---- Handler ----
	handlerOpts = append(handlerOpts, handler.WithLogger(logger), handler.WithMetrics(metrics.Handler()))
	h, err := handler.NewHandler(registry, handlerOpts...)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if listenAddr == "" {
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
		return
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
	}()

	slog.Info("listening", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "err", err)
		os.Exit(1)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Close(closeCtx); err != nil {
		slog.Warn("analytics dispatcher did not drain", "err", err)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
