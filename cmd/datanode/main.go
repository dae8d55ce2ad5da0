package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/struggle121224/sofa-registry/internal/config"
	"github.com/struggle121224/sofa-registry/internal/exchange"
	"github.com/struggle121224/sofa-registry/internal/renewal"
	"github.com/struggle121224/sofa-registry/internal/slot"
)

var (
	nodeIP          = flag.String("ip", "127.0.0.1", "this node's IP as reported to the meta tier")
	dataCenter      = flag.String("data-center", "DefaultDataCenter", "local data center identifier")
	metaEndpoints   = flag.String("meta", "http://127.0.0.1:9615", "comma-separated meta endpoints")
	renewSecs       = flag.Int("renew-interval", 3, "heartbeat renewal interval in seconds")
	dataPeerPort    = flag.Int("data-peer-port", 9620, "port for connections to peer data nodes")
	sessionPeerPort = flag.Int("session-peer-port", 9600, "port for connections to session nodes")
	metricsAddr     = flag.String("metrics-addr", ":9100", "prometheus metrics listen address")
)

func main() {
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.DefaultDataNode()
	cfg.NodeIP = *nodeIP
	cfg.DataCenter = *dataCenter
	cfg.MetaEndpoints = strings.Split(*metaEndpoints, ",")
	cfg.RenewIntervalSecs = *renewSecs
	cfg.DataPeerPort = *dataPeerPort
	cfg.SessionPeerPort = *sessionPeerPort
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	slots := slot.NewManager(cfg.NodeIP, log)
	dataPeers := exchange.NewExchanger("data", cfg.DataPeerPort, log)
	sessionPeers := exchange.NewExchanger("session", cfg.SessionPeerPort, log)

	node := renewal.Node{IP: cfg.NodeIP, Kind: renewal.NodeKindData, DataCenter: cfg.DataCenter}
	renewer := renewal.NewRenewer(node, slots, dataPeers, sessionPeers, log)
	loop := renewal.NewLoop(renewer, renewal.NewHTTPExchanger(cfg.MetaEndpoints), cfg.RenewInterval(), log)
	loop.Start()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	var g errgroup.Group
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	log.Info("data node started",
		zap.String("ip", cfg.NodeIP),
		zap.Strings("meta", cfg.MetaEndpoints),
		zap.Int("renewIntervalSecs", cfg.RenewIntervalSecs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	loop.Stop()
	if err := metricsSrv.Shutdown(context.Background()); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
	if err := dataPeers.Close(); err != nil {
		log.Warn("close data peer connections", zap.Error(err))
	}
	if err := sessionPeers.Close(); err != nil {
		log.Warn("close session peer connections", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		log.Error("metrics server failed", zap.Error(err))
	}
}
