// Package config implements the config loader (spec component D): an
// atomically reloadable record of transport configuration, parsed from a
// flat key=value file with rollback on any error.
package config

import (
	"net"
)

// RequiredKeyCount is the number of direct-read keys a load must
// successfully parse for it to be accepted.
const RequiredKeyCount = 4

// Config is the transport-facing configuration record. SiteLatitude and
// SiteLongitude are optional: present for operator-facing logging, not
// counted toward RequiredKeyCount and not consulted by any core
// operation.
type Config struct {
	DestIP        net.IP
	DestPort      uint16
	RecvPort      uint16
	RecvFilters   []string
	SiteLatitude  float64
	SiteLongitude float64
}

// DestUDPAddr builds the pre-resolved destination socket address from
// DestIP/DestPort.
func (c Config) DestUDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: c.DestIP, Port: int(c.DestPort)}
}

// clone deep-copies the slice field so a Snapshot (or the loader's
// internal next-record buffer) never aliases another Config's backing
// array.
func (c Config) clone() Config {
	cp := c
	cp.RecvFilters = append([]string(nil), c.RecvFilters...)
	return cp
}
