// Package config holds the read-only configuration surfaces of both node
// kinds. Values come from flags in cmd/ and are validated once at startup.
package config

import (
	"fmt"
	"time"
)

// DataNode configures a worker node's renewal side.
type DataNode struct {
	NodeIP            string
	DataCenter        string
	MetaEndpoints     []string
	RenewIntervalSecs int
	DataPeerPort      int
	SessionPeerPort   int
	MetricsAddr       string
}

func DefaultDataNode() DataNode {
	return DataNode{
		NodeIP:            "127.0.0.1",
		DataCenter:        "DefaultDataCenter",
		RenewIntervalSecs: 3,
		DataPeerPort:      9620,
		SessionPeerPort:   9600,
		MetricsAddr:       ":9100",
	}
}

func (c *DataNode) RenewInterval() time.Duration {
	return time.Duration(c.RenewIntervalSecs) * time.Second
}

func (c *DataNode) Validate() error {
	if c.NodeIP == "" {
		return fmt.Errorf("node ip required")
	}
	if len(c.MetaEndpoints) == 0 {
		return fmt.Errorf("at least one meta endpoint required")
	}
	if c.RenewIntervalSecs <= 0 {
		return fmt.Errorf("renew interval must be positive, got %d", c.RenewIntervalSecs)
	}
	return nil
}

// MetaNode configures the coordination tier.
type MetaNode struct {
	ListenAddr              string
	DataDir                 string
	LeaseTTLSecs            int
	LeaderStabilitySecs     int
	ClientManagerExpireDays int
	ClientManagerCleanSecs  int
	CleanBatchLimit         int
	MetricsAddr             string
}

func DefaultMetaNode() MetaNode {
	return MetaNode{
		ListenAddr:              ":9615",
		DataDir:                 "./data",
		LeaseTTLSecs:            30,
		LeaderStabilitySecs:     10,
		ClientManagerExpireDays: 30,
		ClientManagerCleanSecs:  60,
		CleanBatchLimit:         200,
		MetricsAddr:             ":9101",
	}
}

func (c *MetaNode) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSecs) * time.Second
}

func (c *MetaNode) LeaderStability() time.Duration {
	return time.Duration(c.LeaderStabilitySecs) * time.Second
}

func (c *MetaNode) CleanInterval() time.Duration {
	return time.Duration(c.ClientManagerCleanSecs) * time.Second
}

func (c *MetaNode) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir required")
	}
	if c.ClientManagerExpireDays <= 0 {
		return fmt.Errorf("expire days must be positive, got %d", c.ClientManagerExpireDays)
	}
	if c.ClientManagerCleanSecs <= 0 {
		return fmt.Errorf("clean interval must be positive, got %d", c.ClientManagerCleanSecs)
	}
	if c.CleanBatchLimit <= 0 {
		return fmt.Errorf("clean batch limit must be positive, got %d", c.CleanBatchLimit)
	}
	return nil
}
