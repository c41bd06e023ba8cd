package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	appCatalog "github.com/Zhima-Mochi/library-circulation/internal/application/catalog"
	appCirculation "github.com/Zhima-Mochi/library-circulation/internal/application/circulation"
	appLedger "github.com/Zhima-Mochi/library-circulation/internal/application/ledger"
	appPayment "github.com/Zhima-Mochi/library-circulation/internal/application/payment"
	"github.com/Zhima-Mochi/library-circulation/internal/config"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/fee"
	"github.com/Zhima-Mochi/library-circulation/internal/domain/library"
	boltstore "github.com/Zhima-Mochi/library-circulation/internal/infrastructure/bolt"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/library-circulation/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/library-circulation/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/library-circulation/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/library-circulation/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/library-circulation/internal/presentation/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	if err := run(cfg, baseLogger, systemLogger); err != nil {
		systemLogger.Error("service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, baseLogger, systemLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An SDK provider gives spans valid ids, which the request loggers pick up.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := infraobs.Setup(baseLogger, reg, cfg.MetricsNamespace, cfg.ServiceName)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	systemLogger.Info("store_ready", zap.String("driver", cfg.StoreDriver))

	// In-memory event bus feeding the ledger worker
	bus := outbox.NewBus(tel.Logger())
	ledger := appLedger.New(tel)
	workerpresentation.NewLedgerWorker(ledger, tel).Register(bus)
	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		bus.Stop(stopCtx)
	}()

	circulation := appCirculation.NewService(store, tel,
		appCirculation.WithBorrowLimit(cfg.BorrowLimit),
		appCirculation.WithLoanPeriod(cfg.LoanPeriod),
		appCirculation.WithPolicy(fee.DefaultPolicy().In(cfg.FeeLocation)),
		appCirculation.WithPublisher(bus),
	)
	catalog := appCatalog.NewService(store, tel)
	payments := appPayment.NewBridge(store, circulation,
		gateway.NewSimulated(tel.Logger(), gateway.WithSuccessRate(cfg.PaymentRate)),
		tel,
		appPayment.WithMaxRefund(circulation.Policy().MaxFee()),
		appPayment.WithPublisher(bus),
	)

	if cfg.SeedSampleData {
		n, err := catalog.SeedSampleCatalog(ctx)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		systemLogger.Info("catalog_seeded", zap.Int("books", n))
	}

	handler := httppresentation.NewHandler(circulation, catalog, payments, tel,
		httppresentation.WithLedger(ledger),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	return nil
}

// openStore returns the Record Store selected by STORE_DRIVER and its closer.
func openStore(ctx context.Context, cfg config.Config) (library.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StorePostgres, config.StorePostgresSQLX:
		db, err := postgres.Connect(ctx, cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s := postgres.NewStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return memory.NewStore(), func() error { return nil }, nil
	}
}
