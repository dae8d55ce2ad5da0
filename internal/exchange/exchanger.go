// Package exchange maintains connection pools to peer nodes. The renewal
// path swaps in the server set from each heartbeat response and triggers a
// fire-and-forget reconnect sweep; nothing here blocks the renewal loop.
package exchange

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultDialTimeout = 3 * time.Second

// Exchanger holds connections to one tier of peers (data or session).
type Exchanger struct {
	name        string
	port        int
	dialTimeout time.Duration
	log         *zap.Logger

	mu        sync.Mutex
	serverIPs map[string]struct{}
	conns     map[string]net.Conn
	closed    bool
}

func NewExchanger(name string, port int, log *zap.Logger) *Exchanger {
	return &Exchanger{
		name:        name,
		port:        port,
		dialTimeout: defaultDialTimeout,
		log:         log.Named(name + "Exchanger"),
		serverIPs:   make(map[string]struct{}),
		conns:       make(map[string]net.Conn),
	}
}

// SetServerIPs replaces the known server set. Connections to servers no
// longer in the set are closed; new servers are dialed by the next sweep.
func (e *Exchanger) SetServerIPs(ips []string) {
	next := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		next[ip] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for ip, conn := range e.conns {
		if _, ok := next[ip]; !ok {
			if err := conn.Close(); err != nil {
				e.log.Warn("close stale connection", zap.String("server", ip), zap.Error(err))
			}
			delete(e.conns, ip)
		}
	}
	e.serverIPs = next
}

// NotifyConnectAsync kicks off a background sweep that dials every known
// server without a live connection. Fire-and-forget: callers never wait on
// it and sweeps are not tracked for cancellation.
func (e *Exchanger) NotifyConnectAsync() {
	go e.connectSweep()
}

func (e *Exchanger) connectSweep() {
	for _, ip := range e.pendingServers() {
		addr := net.JoinHostPort(ip, strconv.Itoa(e.port))
		conn, err := net.DialTimeout("tcp", addr, e.dialTimeout)
		if err != nil {
			e.log.Warn("connect to server failed", zap.String("server", addr), zap.Error(err))
			continue
		}
		if !e.adopt(ip, conn) {
			_ = conn.Close()
		}
	}
}

func (e *Exchanger) pendingServers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var pending []string
	for ip := range e.serverIPs {
		if _, ok := e.conns[ip]; !ok {
			pending = append(pending, ip)
		}
	}
	return pending
}

// adopt installs conn unless the server left the set or another sweep beat
// this one to it.
func (e *Exchanger) adopt(ip string, conn net.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if _, ok := e.serverIPs[ip]; !ok {
		return false
	}
	if _, ok := e.conns[ip]; ok {
		return false
	}
	e.conns[ip] = conn
	e.log.Info("connected to server", zap.String("server", ip))
	return true
}

// Connection returns the live connection to ip, if any.
func (e *Exchanger) Connection(ip string) (net.Conn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conn, ok := e.conns[ip]
	return conn, ok
}

// ServerIPs returns the current server set.
func (e *Exchanger) ServerIPs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.serverIPs))
	for ip := range e.serverIPs {
		out = append(out, ip)
	}
	return out
}

// Close shuts every connection and rejects future adoptions.
func (e *Exchanger) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	var err error
	for ip, conn := range e.conns {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", ip, cerr))
		}
		delete(e.conns, ip)
	}
	return err
}
