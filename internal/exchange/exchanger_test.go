package exchange

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// acceptingListener runs a TCP accept loop on 127.0.0.1 and returns its port.
func acceptingListener(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 1)
				for {
					if _, err := c.Read(buf); err != nil {
						_ = c.Close()
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestSetServerIPsReplacesSet(t *testing.T) {
	e := NewExchanger("data", 0, zap.NewNop())

	e.SetServerIPs([]string{"10.0.0.1", "10.0.0.2"})
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, e.ServerIPs())

	e.SetServerIPs([]string{"10.0.0.2", "10.0.0.3"})
	assert.ElementsMatch(t, []string{"10.0.0.2", "10.0.0.3"}, e.ServerIPs())
}

func TestConnectSweepEstablishesConnections(t *testing.T) {
	port := acceptingListener(t)
	e := NewExchanger("data", port, zap.NewNop())
	defer e.Close()

	e.SetServerIPs([]string{"127.0.0.1"})
	e.NotifyConnectAsync()

	require.Eventually(t, func() bool {
		_, ok := e.Connection("127.0.0.1")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestRemovedServerConnectionIsClosed(t *testing.T) {
	port := acceptingListener(t)
	e := NewExchanger("data", port, zap.NewNop())
	defer e.Close()

	e.SetServerIPs([]string{"127.0.0.1"})
	e.NotifyConnectAsync()
	require.Eventually(t, func() bool {
		_, ok := e.Connection("127.0.0.1")
		return ok
	}, time.Second, 5*time.Millisecond)

	e.SetServerIPs([]string{})
	_, ok := e.Connection("127.0.0.1")
	assert.False(t, ok)
}

func TestSweepFailuresAreAbsorbed(t *testing.T) {
	// no listener on this port
	e := NewExchanger("data", 1, zap.NewNop())
	e.dialTimeout = 50 * time.Millisecond
	defer e.Close()

	e.SetServerIPs([]string{"127.0.0.1"})
	e.NotifyConnectAsync()

	time.Sleep(100 * time.Millisecond)
	_, ok := e.Connection("127.0.0.1")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"127.0.0.1"}, e.ServerIPs(), "server stays known for the next sweep")
}

func TestCloseRejectsLateAdoption(t *testing.T) {
	port := acceptingListener(t)
	e := NewExchanger("data", port, zap.NewNop())

	e.SetServerIPs([]string{"127.0.0.1"})
	require.NoError(t, e.Close())

	e.NotifyConnectAsync()
	time.Sleep(50 * time.Millisecond)
	_, ok := e.Connection("127.0.0.1")
	assert.False(t, ok)
}
