package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/go-browser-inventory/internal/browsers"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func countExtensions(t *testing.T, d *DB, scanID string, browser browsers.Family) int {
	t.Helper()
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s_extensions WHERE scan_id = ?", browser)
	require.NoError(t, d.conn.QueryRow(query, scanID).Scan(&n))
	return n
}

func sampleExtensions() []browsers.Extension {
	installed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []browsers.Extension{
		{
			Username: "alice", Browser: browsers.Chrome, Profile: "Default",
			ID: "aaaabbbbccccddddeeeeffffgggghhhh", Name: "Cookie Tool", Version: "1.0",
			Kind: browsers.KindExtension, Risk: browsers.Flagged, Active: true,
			InstallDate: installed, UpdateDate: installed,
			UserPermissions: &browsers.PermissionSet{Permissions: []string{"cookies"}, Origins: []string{}},
			Connections: []browsers.Connection{
				{Domain: "api.example.com", Active: true, ExtensionID: "aaaabbbbccccddddeeeeffffgggghhhh"},
				{Domain: "old.example.com", Active: false, ExtensionID: "aaaabbbbccccddddeeeeffffgggghhhh"},
			},
		},
		{
			Username: "alice", Browser: browsers.Firefox, Profile: "ab1.default",
			ID: "addon@example.org", Name: "Addon", Version: "2.0", Kind: "extension",
			Risk: browsers.Clear, Connections: []browsers.Connection{},
		},
	}
}

func TestNewDBCreatesTables(t *testing.T) {
	d := openTestDB(t)

	for _, table := range []string{"scans", "Firefox_extensions", "Chrome_extensions", "Edge_extensions", "connections"} {
		var name string
		err := d.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestSaveScan(t *testing.T) {
	d := openTestDB(t)
	d.now = func() time.Time { return time.Unix(1700000000, 0) }

	scanID, err := d.SaveScan(sampleExtensions())
	require.NoError(t, err)
	_, err = uuid.Parse(scanID)
	require.NoError(t, err)

	var ts int64
	var total int
	require.NoError(t, d.conn.QueryRow("SELECT timestamp, total FROM scans WHERE id = ?", scanID).Scan(&ts, &total))
	assert.Equal(t, int64(1700000000), ts)
	assert.Equal(t, 2, total)

	assert.Equal(t, 1, countExtensions(t, d, scanID, browsers.Chrome))
	assert.Equal(t, 1, countExtensions(t, d, scanID, browsers.Firefox))
	assert.Equal(t, 0, countExtensions(t, d, scanID, browsers.Edge))

	var perms string
	require.NoError(t, d.conn.QueryRow("SELECT user_permissions FROM Chrome_extensions WHERE scan_id = ?", scanID).Scan(&perms))
	assert.JSONEq(t, `{"permissions":["cookies"],"origins":[]}`, perms)

	var missing *string
	require.NoError(t, d.conn.QueryRow("SELECT user_permissions FROM Firefox_extensions WHERE scan_id = ?", scanID).Scan(&missing))
	assert.Nil(t, missing)

	var conns int
	require.NoError(t, d.conn.QueryRow("SELECT COUNT(*) FROM connections WHERE scan_id = ?", scanID).Scan(&conns))
	assert.Equal(t, 2, conns)
}

func TestSaveScanKeepsSnapshotsApart(t *testing.T) {
	d := openTestDB(t)

	first, err := d.SaveScan(sampleExtensions())
	require.NoError(t, err)
	second, err := d.SaveScan(sampleExtensions())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	var scans int
	require.NoError(t, d.conn.QueryRow("SELECT COUNT(*) FROM scans").Scan(&scans))
	assert.Equal(t, 2, scans)
}

func TestSaveScanRollsBack(t *testing.T) {
	d := openTestDB(t)

	exts := sampleExtensions()
	exts = append(exts, exts[0])

	_, err := d.SaveScan(exts)
	require.Error(t, err)

	var scans int
	require.NoError(t, d.conn.QueryRow("SELECT COUNT(*) FROM scans").Scan(&scans))
	assert.Equal(t, 0, scans)
}

func TestSaveScanUnknownBrowser(t *testing.T) {
	d := openTestDB(t)
	_, err := d.SaveScan([]browsers.Extension{{ID: "x", Browser: "Safari"}})
	assert.Error(t, err)
}
