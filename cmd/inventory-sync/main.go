// Command inventory-sync is an interactive client for the inventory API. It
// keeps working while offline and replays queued changes once connectivity
// returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/c0deZ3R0/go-inventory-sync/config"
	"github.com/c0deZ3R0/go-inventory-sync/connectivity"
	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/internal/fakeapi"
	"github.com/c0deZ3R0/go-inventory-sync/inventory"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/metrics"
	"github.com/c0deZ3R0/go-inventory-sync/storage/postgres"
	"github.com/c0deZ3R0/go-inventory-sync/storage/redis"
	"github.com/c0deZ3R0/go-inventory-sync/storage/sqlite"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
	"github.com/c0deZ3R0/go-inventory-sync/transport/httptransport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "inventory-sync:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("inventory-sync", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "path to a YAML config file")
	fake := fs.Bool("fake", false, "serve an in-memory inventory API and point the client at it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging)
	logger := logging.Default()

	if *fake {
		baseURL, shutdown, err := startFakeAPI(logger)
		if err != nil {
			return err
		}
		defer shutdown()
		cfg.API.BaseURL = baseURL
	}

	persister, err := openPersister(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer persister.Close()

	collector := metrics.NewPrometheusCollector(metrics.Config{Namespace: cfg.Metrics.Namespace, IncludeRuntime: true})
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, collector, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	api := httptransport.NewClient(cfg.API.BaseURL,
		httptransport.WithTimeout(cfg.API.Timeout),
		httptransport.WithLogger(logger),
		httptransport.WithLimits(limitsFor(cfg.API)),
	)
	defer api.Close()

	monitor := connectivity.NewMonitor(cfg.Sync.StartOnline, connectivity.WithLogger(logger))
	defer monitor.Close()
	setOnline, closeSource, err := attachSource(ctx, monitor, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	client := inventory.NewClient(api, api, monitor,
		synckit.WithLogger(logger),
		synckit.WithMetrics(collector),
		synckit.WithPersister(persister),
		synckit.WithCallTimeout(cfg.Sync.CallTimeout),
		synckit.WithPersistTimeout(cfg.Sync.PersistTimeout),
	)
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		logger.LogError(ctx, err, "initial replay failed")
	}
	if client.IsOnline() {
		if err := client.Refresh(ctx); err != nil {
			logger.LogError(ctx, err, "initial refresh failed")
		}
	}

	logger.Info("inventory-sync ready",
		slog.String("api", cfg.API.BaseURL),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("online", client.IsOnline()),
		slog.Int("pending", client.PendingCount()))

	sh := &shell{client: client, setOnline: setOnline, out: out}
	return sh.run(ctx, in)
}

// attachSource connects monitor to a health probe when one is configured and
// to a manually driven EventSource otherwise. The returned setter is what the
// shell's online and offline commands use.
func attachSource(ctx context.Context, monitor *connectivity.Monitor, cfg config.Config, logger *logging.Logger) (func(bool), func(), error) {
	if cfg.Sync.ProbeInterval > 0 {
		probe := connectivity.NewProbe(
			connectivity.HTTPCheck(nil, cfg.API.BaseURL+"/health"),
			cfg.Sync.ProbeInterval,
			connectivity.WithProbeLogger(logger),
		)
		probe.Run(ctx)
		if err := monitor.Start(ctx, probe); err != nil {
			probe.Close()
			return nil, nil, err
		}
		// Manual changes hold until the next probe transition.
		return func(online bool) { monitor.Set(online) }, func() { probe.Close() }, nil
	}

	source := connectivity.NewEventSource(4)
	if err := monitor.Start(ctx, source); err != nil {
		source.Close()
		return nil, nil, err
	}
	return func(online bool) {
		if online {
			source.Online()
		} else {
			source.Offline()
		}
	}, func() { source.Close() }, nil
}

func limitsFor(api config.APIConfig) httptransport.Limits {
	limits := httptransport.DefaultLimits()
	if api.MaxResponseBytes > 0 {
		limits.MaxBodyBytes = api.MaxResponseBytes
		if limits.MaxDecompressedBytes < api.MaxResponseBytes {
			limits.MaxDecompressedBytes = api.MaxResponseBytes
		}
	}
	return limits
}

func openPersister(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (synckit.Persister, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return synckit.NewMemoryPersister(), nil
	case config.DriverSQLite:
		return sqlite.New(&sqlite.Config{DataSourceName: cfg.DSN, EnableWAL: true, TableName: cfg.TableName, Logger: logger})
	case config.DriverPostgres:
		return postgres.New(&postgres.Config{ConnectionString: cfg.DSN, TableName: cfg.TableName, Logger: logger})
	case config.DriverRedis:
		return redis.New(ctx, &redis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
			Logger:    logger,
		})
	default:
		return nil, errors.E(errors.Op("inventory-sync.openPersister"), errors.KindInvalid, fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}

// startFakeAPI serves a seeded fakeapi.Server on a loopback port.
func startFakeAPI(logger *logging.Logger) (string, func(), error) {
	api := fakeapi.New(fakeapi.WithLogger(logger))
	bolt := api.SeedProduct(inventory.Product{Name: "Hex bolt M8", Price: decimal.RequireFromString("0.35"), Quantity: 500, Unit: "pcs", MinOrderQuantity: 10, Status: inventory.ProductActive})
	api.SeedProduct(inventory.Product{Name: "Washer M8", Price: decimal.RequireFromString("0.05"), Quantity: 2000, Unit: "pcs", MinOrderQuantity: 50, Status: inventory.ProductActive})
	api.SeedOrder(inventory.Order{CustomerName: "Acme Corp", Address: "1 Main St", Status: inventory.OrderActive, Tags: []string{"wholesale"},
		Items: []inventory.LineItem{{ProductID: bolt.ID, Quantity: 100}}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: api, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()

	baseURL := "http://" + ln.Addr().String()
	logger.Info("fake inventory API listening", slog.String("url", baseURL))
	return baseURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
