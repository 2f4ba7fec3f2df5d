package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validConfig = `
# comment line, ignored
trackmanager_dst_ip = 127.0.0.1
trackmanager_dst_port = 5555
trackmanager_recv_port = 5556
trackmanager_recv_filters = TRACK_, SYSTEM_
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()

	require.NoError(t, l.Load(path))

	cfg := l.Snapshot()
	assert.Equal(t, "127.0.0.1", cfg.DestIP.String())
	assert.Equal(t, uint16(5555), cfg.DestPort)
	assert.Equal(t, uint16(5556), cfg.RecvPort)
	assert.Equal(t, []string{"TRACK_", "SYSTEM_"}, cfg.RecvFilters)
}

func TestLoadRollsBackOnBadPort(t *testing.T) {
	// Scenario 6.
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	badPath := writeTempConfig(t, `
trackmanager_dst_ip = 127.0.0.1
trackmanager_dst_port = 5555
trackmanager_recv_port = abc
trackmanager_recv_filters = TRACK_
`)

	err := l.Load(badPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollback))

	cfg := l.Snapshot()
	assert.Equal(t, uint16(5556), cfg.RecvPort, "previous port retained")
	assert.Equal(t, []string{"TRACK_", "SYSTEM_"}, cfg.RecvFilters, "previous filters retained")
}

func TestLoadRollsBackOnMissingRequiredKeys(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	partialPath := writeTempConfig(t, `
trackmanager_recv_port = 6000
`)

	err := l.Load(partialPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollback))

	cfg := l.Snapshot()
	assert.Equal(t, uint16(5556), cfg.RecvPort)
}

func TestLoadRollsBackOnUnknownKey(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	badPath := writeTempConfig(t, validConfig+"\nsome_unknown_key = 1\n")

	err := l.Load(badPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollback))

	cfg := l.Snapshot()
	assert.Equal(t, uint16(5556), cfg.RecvPort)
}

func TestLoadMissingFileIsError(t *testing.T) {
	l := NewLoader()
	err := l.Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	assert.Error(t, err)
}

func TestLoadOptionalSiteFieldsDoNotCountTowardRequiredKeys(t *testing.T) {
	path := writeTempConfig(t, validConfig+"\ntrackmanager_site_lat = 12.5\ntrackmanager_site_lon = -3.25\n")
	l := NewLoader()
	require.NoError(t, l.Load(path))

	cfg := l.Snapshot()
	assert.InDelta(t, 12.5, cfg.SiteLatitude, 1e-9)
	assert.InDelta(t, -3.25, cfg.SiteLongitude, 1e-9)
}

func TestLoadRollsBackOnBadFilters(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	badPath := writeTempConfig(t, `
trackmanager_dst_ip = 127.0.0.1
trackmanager_dst_port = 5555
trackmanager_recv_port = 5556
trackmanager_recv_filters = , ,
`)

	err := l.Load(badPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollback))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	snap := l.Snapshot()
	snap.RecvFilters[0] = "MUTATED"

	fresh := l.Snapshot()
	assert.Equal(t, "TRACK_", fresh.RecvFilters[0], "mutating a snapshot must not affect the loader's record")
}

func TestDestUDPAddr(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	l := NewLoader()
	require.NoError(t, l.Load(path))

	addr := l.Snapshot().DestUDPAddr()
	assert.Equal(t, "127.0.0.1", addr.IP.String())
	assert.Equal(t, 5555, addr.Port)
}
