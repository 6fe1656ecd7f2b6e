package session

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"time"

	"tgfeed/internal/domain"

	_ "modernc.org/sqlite"
)

const (
	// Credential blobs smaller than this cannot hold key material.
	minBlobSize = 100
	// Anything larger than this is not a credential file.
	maxBlobSize = 10 << 20
)

// sqliteMagic is the header of a SQLite-backed credential file.
var sqliteMagic = []byte("SQLite format 3\x00")

// Credential is a structurally validated credential ready for client
// construction.
type Credential struct {
	Source domain.SessionSource
	Path   string // set when Source is SourceFile
	Data   []byte // raw blob when Source is SourceString
}

// ValidateBlob checks that a decoded credential blob plausibly holds key
// material: bounded size and not all zero bytes.
func ValidateBlob(data []byte) error {
	if len(data) < minBlobSize {
		return fmt.Errorf("credential blob too small (%d bytes)", len(data))
	}
	if len(data) > maxBlobSize {
		return fmt.Errorf("credential blob too large (%d bytes)", len(data))
	}
	for _, b := range data {
		if b != 0 {
			return nil
		}
	}
	return fmt.Errorf("credential blob is empty key material")
}

// CheckFileHealth validates a persisted credential file: existence, size
// bounds, and a minimal structural read. SQLite-backed files get probed
// through the driver; anything else just needs a readable non-empty header.
func CheckFileHealth(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("credential file does not exist: %w", err)
	}
	size := info.Size()
	if size < minBlobSize {
		return fmt.Errorf("credential file too small (%d bytes)", size)
	}
	if size > maxBlobSize {
		return fmt.Errorf("credential file too large (%d bytes)", size)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read credential file: %w", err)
	}
	header := make([]byte, len(sqliteMagic))
	n, _ := f.Read(header)
	f.Close()
	if n == 0 {
		return fmt.Errorf("empty credential file")
	}

	if bytes.Equal(header[:n], sqliteMagic) {
		return probeSQLite(path)
	}
	return nil
}

// probeSQLite opens the file read-only and confirms the schema is readable.
func probeSQLite(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open credential database: %w", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		return fmt.Errorf("credential database unreadable: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("credential database has no schema")
	}
	return nil
}

// CreateCredentialFile initializes a fresh, empty credential file for a
// client that still has to log in interactively. Layout mirrors the
// persisted session databases the health check accepts.
func CreateCredentialFile(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot create credential file: %w", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE IF NOT EXISTS version (version INTEGER);
	CREATE TABLE IF NOT EXISTS session (
		dc_id          INTEGER,
		server_address TEXT,
		port           INTEGER,
		auth_key       BLOB
	);
	INSERT INTO version (version) VALUES (1);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("cannot initialize credential file: %w", err)
	}
	return nil
}

// FreshCredentialPath returns a non-conflicting path for a brand-new
// credential file.
func FreshCredentialPath() string {
	return fmt.Sprintf("session_%s.session", time.Now().Format("20060102_150405"))
}
