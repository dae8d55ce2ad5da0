package clientmanager

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/metrics"
)

const (
	defaultExpireDays      = 30
	defaultCleanInterval   = 60 * time.Second
	defaultCleanBatchLimit = 200
)

// Config controls the expiry cleaner.
type Config struct {
	// ExpireDays is the retention window for closed addresses.
	ExpireDays int
	// CleanInterval is the cleaner cadence.
	CleanInterval time.Duration
	// CleanBatchLimit caps how many addresses one cycle removes.
	CleanBatchLimit int
}

func DefaultConfig() Config {
	return Config{
		ExpireDays:      defaultExpireDays,
		CleanInterval:   defaultCleanInterval,
		CleanBatchLimit: defaultCleanBatchLimit,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ExpireDays <= 0 {
		out.ExpireDays = defaultExpireDays
	}
	if out.CleanInterval <= 0 {
		out.CleanInterval = defaultCleanInterval
	}
	if out.CleanBatchLimit <= 0 {
		out.CleanBatchLimit = defaultCleanBatchLimit
	}
	return out
}

// Service is the administrative control plane for marking client addresses
// open or closed. It owns the background cleaner that purges closed
// addresses older than the retention window, on the stable leader only.
type Service struct {
	repo   AddressRepository
	leader LeadershipOracle
	cfg    Config
	log    *zap.Logger
	clk    clock.Clock

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewService(repo AddressRepository, leader LeadershipOracle, cfg Config, log *zap.Logger) *Service {
	return newService(repo, leader, cfg, log, clock.New())
}

func newService(repo AddressRepository, leader LeadershipOracle, cfg Config, log *zap.Logger, clk clock.Clock) *Service {
	return &Service{
		repo:   repo,
		leader: leader,
		cfg:    cfg.withDefaults(),
		log:    log.Named("clientManager"),
		clk:    clk,
		done:   make(chan struct{}),
	}
}

// ClientOpen marks every address in ips traffic-enabled. An empty input is
// a no-op returning false, with no repository call.
func (s *Service) ClientOpen(ctx context.Context, ips []string) bool {
	addrs := buildAddressVersions(ips, true)
	if len(addrs) == 0 {
		return false
	}
	return s.submit(ctx, "clientOpen", addrs, s.repo.ClientOpen)
}

// ClientOff marks every address in ips traffic-disabled. An empty input is
// a no-op returning false, with no repository call.
func (s *Service) ClientOff(ctx context.Context, ips []string) bool {
	addrs := buildAddressVersions(ips, false)
	if len(addrs) == 0 {
		return false
	}
	return s.submit(ctx, "clientOff", addrs, s.repo.ClientOff)
}

// ClientOffWithSub is ClientOff for callers that already carry version
// context, e.g. when propagating another replica's write.
func (s *Service) ClientOffWithSub(ctx context.Context, addrs []AddressVersion) bool {
	if len(addrs) == 0 {
		return false
	}
	return s.submit(ctx, "clientOffWithSub", addrs, s.repo.ClientOff)
}

// Reduce removes the addresses from open/off tracking.
func (s *Service) Reduce(ctx context.Context, ips []string) bool {
	addrs := buildAddressVersions(ips, true)
	if len(addrs) == 0 {
		return false
	}
	return s.submit(ctx, "reduce", addrs, s.repo.Reduce)
}

func (s *Service) submit(ctx context.Context, op string, addrs []AddressVersion,
	call func(context.Context, []AddressVersion) (bool, error)) bool {
	ok, err := call(ctx, addrs)
	if err != nil {
		s.log.Error("repository call failed", zap.String("op", op), zap.Error(err))
		return false
	}
	return ok
}

// QueryClientOffAddress returns the current off-set snapshot. A stored
// version of 0 means the directory has never been written; that is surfaced
// as ErrNotFound rather than an empty snapshot.
func (s *Service) QueryClientOffAddress(ctx context.Context) (ClientManagerAddress, error) {
	data, err := s.repo.QueryClientOffData(ctx)
	if err != nil {
		return ClientManagerAddress{}, err
	}
	if data.Version == 0 {
		return ClientManagerAddress{}, ErrNotFound
	}
	return data, nil
}

// WaitSynced blocks until the local replica is caught up with its
// replication source.
func (s *Service) WaitSynced(ctx context.Context) error {
	return s.repo.WaitSynced(ctx)
}

// Start launches the expiry cleaner. Safe to call more than once; the
// cleaner runs exactly once per process lifetime.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.cleanLoop()
		s.log.Info("client manager cleaner started",
			zap.Int("expireDays", s.cfg.ExpireDays),
			zap.Duration("interval", s.cfg.CleanInterval),
			zap.Int("batchLimit", s.cfg.CleanBatchLimit))
	})
}

// Stop lets the current cleaner iteration finish and prevents the next.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Service) cleanLoop() {
	defer s.wg.Done()
	for {
		s.cleanOnce()
		select {
		case <-s.done:
			return
		case <-s.clk.After(s.cfg.CleanInterval):
		}
	}
}

// cleanOnce is one cleaner cycle. Only the stable leader performs the
// destructive scan; every failure is absorbed and retried by re-scan on the
// next cycle.
func (s *Service) cleanOnce() {
	if !s.leader.IsStableLeader() {
		metrics.CleanerCycles.WithLabelValues("skipped").Inc()
		return
	}

	ctx := context.Background()
	cutoff := s.clk.Now().AddDate(0, 0, -s.cfg.ExpireDays)

	expired, err := s.repo.GetExpireAddress(ctx, cutoff, s.cfg.CleanBatchLimit)
	if err != nil {
		metrics.CleanerCycles.WithLabelValues("error").Inc()
		s.log.Error("fetch expired addresses failed", zap.Error(err))
		return
	}

	if len(expired) > 0 {
		count, err := s.repo.CleanExpired(ctx, expired)
		if err != nil {
			metrics.CleanerCycles.WithLabelValues("error").Inc()
			s.log.Error("clean expired addresses failed", zap.Error(err))
			return
		}
		metrics.CleanerCycles.WithLabelValues("cleaned").Inc()
		metrics.CleanedAddresses.Add(float64(count))
		s.log.Info("cleaned expired addresses",
			zap.Int("expect", len(expired)),
			zap.Int("actual", count),
			zap.Strings("addresses", expired))
	} else {
		metrics.CleanerCycles.WithLabelValues("idle").Inc()
	}

	pending, err := s.repo.GetClientOffSizeBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("count pending expired addresses failed", zap.Error(err))
		return
	}
	metrics.PendingExpiredAddresses.Set(float64(pending))
	s.log.Info("expired client off address size", zap.Int("size", pending))
}

func buildAddressVersions(ips []string, open bool) []AddressVersion {
	if len(ips) == 0 {
		return nil
	}
	addrs := make([]AddressVersion, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, NewAddressVersion(ip, open))
	}
	return addrs
}
