package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/struggle121224/sofa-registry/internal/clientmanager"
	"github.com/struggle121224/sofa-registry/internal/clientmanager/badgerstore"
	"github.com/struggle121224/sofa-registry/internal/config"
	"github.com/struggle121224/sofa-registry/internal/leader"
	"github.com/struggle121224/sofa-registry/internal/metaserver"
)

var (
	listenAddr  = flag.String("addr", ":9615", "renewal and admin listen address")
	dataDir     = flag.String("data-dir", "./data", "directory for the address repository")
	leaseSecs   = flag.Int("lease-ttl", 30, "node renewal lease TTL in seconds")
	stableSecs  = flag.Int("leader-stability", 10, "seconds of held leadership before leader-only work runs")
	expireDays  = flag.Int("expire-days", 30, "retention window for closed client addresses, in days")
	cleanSecs   = flag.Int("clean-interval", 60, "client manager cleaner interval in seconds")
	cleanBatch  = flag.Int("clean-batch-limit", 200, "max addresses removed per cleaner cycle")
	metricsAddr = flag.String("metrics-addr", ":9101", "prometheus metrics listen address")
)

func main() {
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.DefaultMetaNode()
	cfg.ListenAddr = *listenAddr
	cfg.DataDir = *dataDir
	cfg.LeaseTTLSecs = *leaseSecs
	cfg.LeaderStabilitySecs = *stableSecs
	cfg.ClientManagerExpireDays = *expireDays
	cfg.ClientManagerCleanSecs = *cleanSecs
	cfg.CleanBatchLimit = *cleanBatch
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	repo, err := badgerstore.New(cfg.DataDir)
	if err != nil {
		log.Fatal("open address repository", zap.Error(err))
	}

	// Single-process deployment: this node is the leader from startup,
	// stable once the margin elapses.
	elector := leader.NewLeaseElector(cfg.LeaderStability())
	elector.BecomeLeader()

	cm := clientmanager.NewService(repo, elector, clientmanager.Config{
		ExpireDays:      cfg.ClientManagerExpireDays,
		CleanInterval:   cfg.CleanInterval(),
		CleanBatchLimit: cfg.CleanBatchLimit,
	}, log)
	cm.Start()

	meta := metaserver.NewServer(cfg.LeaseTTL(), log)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: metaserver.Mux(meta, cm, log)}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}

	var g errgroup.Group
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	log.Info("meta node started",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("expireDays", cfg.ClientManagerExpireDays),
		zap.Int("cleanBatchLimit", cfg.CleanBatchLimit))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cm.Stop()
	err = multierr.Combine(
		srv.Shutdown(context.Background()),
		metricsSrv.Shutdown(context.Background()),
		g.Wait(),
		repo.Close(),
	)
	if err != nil {
		log.Error("shutdown finished with errors", zap.Error(err))
	}
}
