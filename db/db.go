package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lotekdan/go-browser-inventory/internal/browsers"
)

// DB wraps the SQLite connection used for scan snapshots
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// NewDB opens (or creates) the snapshot database and its tables
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec(`
        CREATE TABLE IF NOT EXISTS scans (
            id TEXT PRIMARY KEY,
            timestamp INTEGER NOT NULL,
            total INTEGER NOT NULL
        )`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table scans: %w", err)
	}

	for _, browser := range browsers.Families {
		// Composite key mirrors record identity within one scan
		query := fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s_extensions (
                scan_id TEXT NOT NULL,
                username TEXT NOT NULL,
                profile TEXT NOT NULL,
                id TEXT NOT NULL,
                name TEXT NOT NULL,
                version TEXT NOT NULL,
                kind TEXT NOT NULL,
                risk TEXT NOT NULL,
                active INTEGER NOT NULL,
                creator TEXT,
                homepage_url TEXT,
                install_date INTEGER,
                update_date INTEGER,
                path TEXT,
                user_permissions TEXT,
                optional_permissions TEXT,
                PRIMARY KEY (scan_id, username, profile, id)
            )`, browser)
		if _, err := conn.Exec(query); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table %s_extensions: %w", browser, err)
		}
	}

	if _, err := conn.Exec(`
        CREATE TABLE IF NOT EXISTS connections (
            scan_id TEXT NOT NULL,
            browser TEXT NOT NULL,
            username TEXT NOT NULL,
            profile TEXT NOT NULL,
            extension_id TEXT NOT NULL,
            domain TEXT NOT NULL,
            active INTEGER NOT NULL
        )`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table connections: %w", err)
	}

	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// SaveScan writes one scan snapshot in a single transaction and returns its id
func (d *DB) SaveScan(extensions []browsers.Extension) (string, error) {
	scanID := uuid.NewString()

	tx, err := d.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO scans (id, timestamp, total) VALUES (?, ?, ?)",
		scanID, d.now().Unix(), len(extensions)); err != nil {
		tx.Rollback()
		return "", fmt.Errorf("failed to insert scan: %w", err)
	}

	for _, ext := range extensions {
		if err := insertExtension(tx, scanID, ext); err != nil {
			tx.Rollback()
			return "", err
		}
		for _, c := range ext.Connections {
			if _, err := tx.Exec(`INSERT INTO connections
                (scan_id, browser, username, profile, extension_id, domain, active)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
				scanID, string(ext.Browser), ext.Username, ext.Profile, ext.ID, c.Domain, boolInt(c.Active)); err != nil {
				tx.Rollback()
				return "", fmt.Errorf("failed to insert connection: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit scan: %w", err)
	}
	return scanID, nil
}

func insertExtension(tx *sql.Tx, scanID string, ext browsers.Extension) error {
	if _, ok := browsers.ParseFamily(string(ext.Browser)); !ok {
		return fmt.Errorf("extension %s has unknown browser %q", ext.ID, ext.Browser)
	}

	userPerms, err := permissionsJSON(ext.UserPermissions)
	if err != nil {
		return err
	}
	optionalPerms, err := permissionsJSON(ext.OptionalPermissions)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s_extensions
        (scan_id, username, profile, id, name, version, kind, risk, active, creator,
         homepage_url, install_date, update_date, path, user_permissions, optional_permissions)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, ext.Browser)
	if _, err := tx.Exec(query,
		scanID, ext.Username, ext.Profile, ext.ID, ext.Name, ext.Version, string(ext.Kind), string(ext.Risk),
		boolInt(ext.Active), ext.Creator, ext.HomepageURL, unixOrNil(ext.InstallDate), unixOrNil(ext.UpdateDate),
		ext.Path, userPerms, optionalPerms); err != nil {
		return fmt.Errorf("failed to insert extension %s: %w", ext.ID, err)
	}
	return nil
}

// permissionsJSON keeps the absent/empty distinction: NULL for no block
func permissionsJSON(p *browsers.PermissionSet) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := sonic.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	return string(data), nil
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
