package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/handlers"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/analytics"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/auth"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/config"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/consul"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/couriers"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/grpcapi"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/orders"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/payments"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/postal"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/kafka"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/memory"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/postgres"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/rabbitmq"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/stores/redis"
	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	consulapi "github.com/hashicorp/consul/api"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if err := run(); err != nil {
		slog.Error("backoffice stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

type storage struct {
	orders  orders.Store
	catalog catalog.Store
	users   users.Store
	closers []func() error
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := auth.NewKeys(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(st.closers) - 1; i >= 0; i-- {
			if err := st.closers[i](); err != nil {
				slog.Error("closing resource failed", slog.String(logkey.ERROR, err.Error()))
			}
		}
	}()

	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rc, err := redis.NewCache(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		st.closers = append(st.closers, rc.Close)
		cache = rc
	}
	cat, err := catalog.NewConf(st.catalog, cache, cfg.CacheTTL)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(cfg, st)
	if err != nil {
		return err
	}

	var consulClient *consulapi.Client
	if cfg.ConsulAddr != "" {
		if consulClient, err = consul.NewClient(cfg.ConsulAddr); err != nil {
			return err
		}
	}

	opts := []orders.Option{
		orders.WithPublisher(publisher),
		orders.WithPublishTimeout(cfg.PublishTimeout),
		orders.WithPricer(cat),
		orders.WithEffect(orders.StatusAccepted, cat.StockEffect()),
	}
	courier := courierClient(cfg, consulClient)
	if courier != nil {
		opts = append(opts, orders.WithCourier(couriers.NewDispatcher(courier, cfg.CourierServiceName)))
	}
	orderConf, err := orders.NewConf(st.orders, opts...)
	if err != nil {
		return err
	}

	deps := handlers.Deps{
		Orders:    orderConf,
		Catalog:   cat,
		Analytics: analytics.NewAggregator(st.orders, st.users, cfg.ChurnAfter),
		Users:     st.users,
		Postal:    postal.NewClient(cfg.PostalBaseURL, cfg.HTTPClientTimeout),
		Couriers:  courier,
	}
	if cfg.StripeWebhookSecret != "" {
		if deps.Webhook, err = payments.NewWebhook(cfg.StripeWebhookSecret, orderConf); err != nil {
			return err
		}
	}
	if cfg.StripeSecretKey != "" {
		if deps.Gateway, err = payments.NewGateway(cfg.StripeSecretKey, payments.Backends(cfg.HTTPClientTimeout)); err != nil {
			return err
		}
	}

	router, err := handlers.API(cfg.EndpointPrefix, cfg.GinMode, keys, deps)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcapi.NewServer(st.orders, keys)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
	}

	errc := make(chan error, 2)
	go func() {
		slog.Info("http server listening", slog.String("Addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		slog.Info("grpc server listening", slog.String("Addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- err
		}
	}()

	if consulClient != nil {
		id, err := consul.RegisterService(consulClient, cfg.ServiceName, cfg.ServiceHost, cfg.ServicePort)
		if err != nil {
			slog.Error("consul registration failed", slog.String(logkey.ERROR, err.Error()))
		} else {
			defer func() {
				if err := consul.DeregisterService(consulClient, id); err != nil {
					slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
				}
			}()
		}
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	grpcSrv.GracefulStop()
	return srv.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StoreBackend == "memory" {
		slog.Warn("using in-memory storage, data is lost on restart")
		return &storage{
			orders:  memory.NewOrderStore(),
			catalog: memory.NewCatalogStore(),
			users:   memory.NewUserStore(),
		}, nil
	}

	db, err := postgres.OpenDB(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	st := &storage{closers: []func() error{db.Close}}
	if st.orders, err = postgres.NewOrderStore(db, cfg.DSN()); err != nil {
		return nil, err
	}
	if st.catalog, err = postgres.NewCatalogStore(db); err != nil {
		return nil, err
	}
	if st.users, err = postgres.NewUserStore(db); err != nil {
		return nil, err
	}
	return st, nil
}

func openPublisher(cfg *config.Config, st *storage) (events.Publisher, error) {
	switch cfg.EventBroker {
	case "kafka":
		k, err := kafka.NewConf(cfg.KafkaBrokers, cfg.PublishTimeout)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() error { k.Close(); return nil })
		return k, nil
	case "rabbitmq":
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, p.Close)
		return p, nil
	}
	return events.LogPublisher{}, nil
}

// courierClient resolves the courier relay from config, falling back to consul discovery.
// It returns nil when neither knows where the relay is.
func courierClient(cfg *config.Config, cc *consulapi.Client) *couriers.Client {
	base := cfg.CourierBaseURL
	if base == "" && cc != nil {
		host, port, err := consul.GetServiceAddress(cc, cfg.CourierServiceName)
		if err != nil {
			slog.Warn("courier relay not discovered", slog.String(logkey.ERROR, err.Error()))
			return nil
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}
	if base == "" {
		return nil
	}
	return couriers.NewClient(base, cfg.CourierAPIToken, cfg.HTTPClientTimeout)
}
