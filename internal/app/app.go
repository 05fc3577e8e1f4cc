package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/event"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/internal/domain/report"
	"github.com/xenking/rental-ledger/internal/events"
	"github.com/xenking/rental-ledger/internal/gateway/razorpay"
	"github.com/xenking/rental-ledger/internal/handler"
	"github.com/xenking/rental-ledger/internal/idempotency"
	"github.com/xenking/rental-ledger/internal/jobs"
	"github.com/xenking/rental-ledger/internal/repository"
	"github.com/xenking/rental-ledger/pkg/health"
	"github.com/xenking/rental-ledger/pkg/httpmiddleware"
	"github.com/xenking/rental-ledger/pkg/jobmetrics"
)

const serviceName = "rental-ledger"

// Run creates all dependencies, starts the HTTP server and the background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	billing, err := cfg.ParseBilling()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	db := repository.New(pool)

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(db))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Payment verification guard. Redis is optional; without it duplicate
	// callbacks are caught by the payments unique index alone.
	var guard payment.IdempotencyGuard
	if cfg.Redis.Addr != "" {
		client, err := idempotency.NewClient(cfg.Redis.Addr)
		if err != nil {
			return errors.Wrap(err, "create redis client")
		}
		defer func() { _ = client.Close() }()

		g, err := idempotency.NewGuard(client, "payment-verify", cfg.Redis.IdempotencyTTL)
		if err != nil {
			return errors.Wrap(err, "create idempotency guard")
		}
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(g))
		guard = g
	}

	// Lifecycle events go to Kafka when brokers are configured.
	var (
		publisher event.Publisher = events.Log{}
		kafkaPub  *events.Kafka
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err = events.NewKafka(events.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Producer: serviceName,
			Buffer:   cfg.Kafka.Buffer,
		}, lg.Named("events"))
		if err != nil {
			return errors.Wrap(err, "create kafka publisher")
		}
		publisher = kafkaPub
	}

	gateway, err := razorpay.New(razorpay.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	}, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}

	// Domain services.
	products := db.Products()
	ledger := inventory.NewLedger(db, products, db.Reservations(), cfg.Holds.TTL)
	invoices := invoice.NewGenerator(db, db.Invoices(), db.Parties(), invoice.Config{
		Currency: cfg.Billing.Currency,
		DueDays:  cfg.Billing.InvoiceDueDays,
	})
	orders := order.NewService(order.Deps{
		Tx:       db,
		Orders:   db.Orders(),
		Products: products,
		Ledger:   ledger,
		Coupons:  coupon.NewRepoValidator(db.Coupons()),
		Invoices: invoices,
		Events:   publisher,
	}, order.Settings{
		Pricing: order.Pricing{
			TaxRate:        billing.TaxRate,
			DeliveryCharge: billing.DeliveryCharge,
		},
		LateFee: billing.LateFee,
	})
	payments := payment.NewService(payment.Deps{
		Tx:       db,
		Payments: db.Payments(),
		Invoices: db.Invoices(),
		Gateway:  gateway,
		Guard:    guard,
		Events:   publisher,
	}, payment.Config{
		Currency: cfg.Billing.Currency,
		Secret:   cfg.Gateway.KeySecret,
	})

	// Background jobs report to their own registry, served at /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sweeper := jobs.NewHoldSweeper(ledger, cfg.Holds.SweepInterval, jobmetrics.New(reg))
	healthSvc.AddLivenessCheck("hold_sweeper", time.Second,
		health.HeartbeatCheck(sweeper.LastRun, 3*cfg.Holds.SweepInterval, time.Now))

	api := handler.New(handler.Deps{
		Auth:         auth.NewAuthenticator(db.APIKeys(), []byte(cfg.APIKeyPepper)),
		Products:     products,
		Availability: ledger,
		Orders:       orders,
		Invoices:     invoices,
		Payments:     payments,
		Reports:      report.NewService(db.Reports(), nil),
		Settings: handler.Settings{
			CompanyName:       cfg.Company.Name,
			GSTIN:             cfg.Company.GSTIN,
			Currency:          cfg.Billing.Currency,
			TaxRate:           billing.TaxRate,
			DeliveryCharge:    billing.DeliveryCharge,
			LateFeePolicy:     string(billing.LateFee.Policy),
			LateFeePerDay:     billing.LateFee.PerDay,
			LateFeePercentage: billing.LateFee.Percentage,
			InvoiceDueDays:    cfg.Billing.InvoiceDueDays,
			HoldTTLSeconds:    int(cfg.Holds.TTL / time.Second),
		},
		ReturnWindow:   cfg.Holds.ReturnWindow,
		ExportPageSize: cfg.Export.PageSize,
	})

	// Router: health, metrics and the API on one server.
	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	root.Mount("/api", api.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Exports stream for longer than a regular response.
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(root,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, "X-Request-ID"},
				ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// The publisher outlives the server so events emitted by in-flight
	// requests during shutdown are still flushed.
	pubCtx, stopPublisher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPublisher()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	if kafkaPub != nil {
		g.Go(func() error {
			return kafkaPub.Run(pubCtx, cfg.Kafka.FlushTimeout)
		})
	}
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		defer stopPublisher()

		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}
