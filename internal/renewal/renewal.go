// Package renewal keeps a worker node converging toward the meta tier's
// authoritative state through a fixed-interval heartbeat exchange.
package renewal

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/metrics"
)

const defaultExchangeTimeout = 10 * time.Second

// Handler supplies the node-kind specific halves of the renewal protocol:
// building the outgoing report and applying the authoritative answer.
type Handler interface {
	// CreateRequest builds a heartbeat from current local state. It must
	// not block on network or storage.
	CreateRequest() HeartbeatRequest

	// HandleRenewResult applies one successful response.
	HandleRenewResult(resp HeartbeatResponse)
}

// MetaExchanger performs one request/response round with the meta tier.
type MetaExchanger interface {
	Exchange(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error)
}

// Loop drives a Handler at a fixed cadence. A failed round is logged and
// absorbed; the next cycle proceeds from the last known-good local state.
// The loop only stops on Stop.
type Loop struct {
	handler  Handler
	meta     MetaExchanger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	clk      clock.Clock

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewLoop(handler Handler, meta MetaExchanger, interval time.Duration, log *zap.Logger) *Loop {
	return newLoop(handler, meta, interval, log, clock.New())
}

func newLoop(handler Handler, meta MetaExchanger, interval time.Duration, log *zap.Logger, clk clock.Clock) *Loop {
	return &Loop{
		handler:  handler,
		meta:     meta,
		interval: interval,
		timeout:  defaultExchangeTimeout,
		log:      log.Named("renewer"),
		clk:      clk,
		done:     make(chan struct{}),
	}
}

// Start launches the renewal loop, once per Loop.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(1)
		go l.run()
		l.log.Info("renewal loop started", zap.Duration("interval", l.interval))
	})
}

// Stop lets the current round finish and prevents the next.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		l.renewOnce()
		select {
		case <-l.done:
			return
		case <-l.clk.After(l.interval):
		}
	}
}

func (l *Loop) renewOnce() {
	req := l.handler.CreateRequest()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	start := l.clk.Now()
	resp, err := l.meta.Exchange(ctx, req)
	metrics.RenewDuration.Observe(l.clk.Now().Sub(start).Seconds())
	if err != nil {
		metrics.RenewCycles.WithLabelValues("error").Inc()
		l.log.Error("renew round failed",
			zap.String("requestId", req.RequestID),
			zap.Int64("epoch", req.SlotTableEpoch),
			zap.Error(err))
		return
	}

	l.handler.HandleRenewResult(resp)
	metrics.RenewCycles.WithLabelValues("success").Inc()
}
