// Package cache persists generated frame lists keyed by (year, round, kind)
// in a SQLite-backed store, so a replayed session does not have to
// regenerate frames from the upstream telemetry adapter on every request.
package cache

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"embed"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Key identifies one cached session artifact.
type Key struct {
	Year  int
	Round int
	Kind  string
}

// Artifact is one cached session: its frame list plus whatever metadata the
// caller wants to round-trip alongside it (serialized as opaque JSON so the
// cache package never depends on the pipeline package).
type Artifact struct {
	Frames      []*frame.Frame
	MetadataRaw json.RawMessage
}

// Store wraps a *sql.DB migrated to the cache schema.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and migrates
// it to the latest cache schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply cache db pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded cache migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run cache migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get loads the cached artifact for key. Returns raceerr.CacheMiss if no
// row exists, or if the stored blob fails to decompress/decode — a corrupt
// artifact is treated as absent rather than returned partially.
func (s *Store) Get(key Key) (*Artifact, error) {
	var blob []byte
	var metaJSON string
	row := s.db.QueryRow(`SELECT frames_blob, metadata_json FROM session_cache WHERE year=? AND round=? AND kind=?`,
		key.Year, key.Round, key.Kind)
	if err := row.Scan(&blob, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, raceerr.CacheMiss
		}
		return nil, fmt.Errorf("query cache row: %w", err)
	}

	frames, err := decodeFrames(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raceerr.CacheMiss, err)
	}

	return &Artifact{Frames: frames, MetadataRaw: json.RawMessage(metaJSON)}, nil
}

// Put stores (or replaces) the artifact for key.
func (s *Store) Put(key Key, artifact *Artifact) error {
	blob, err := encodeFrames(artifact.Frames)
	if err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}
	metaJSON := artifact.MetadataRaw
	if metaJSON == nil {
		metaJSON = json.RawMessage("{}")
	}

	_, err = s.db.Exec(`
		INSERT INTO session_cache (year, round, kind, frames_blob, metadata_json, frame_count, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, round, kind) DO UPDATE SET
			frames_blob=excluded.frames_blob,
			metadata_json=excluded.metadata_json,
			frame_count=excluded.frame_count,
			created_unix=excluded.created_unix`,
		key.Year, key.Round, key.Kind, blob, string(metaJSON), len(artifact.Frames), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert cache row: %w", err)
	}
	return nil
}

// Has reports whether a cache row exists for key, without decoding it.
func (s *Store) Has(key Key) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM session_cache WHERE year=? AND round=? AND kind=?`,
		key.Year, key.Round, key.Kind).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check cache row: %w", err)
	}
	return n > 0, nil
}

func encodeFrames(frames []*frame.Frame) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(frames); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeFrames(blob []byte) ([]*frame.Frame, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	var frames []*frame.Frame
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&frames); err != nil {
		return nil, err
	}
	return frames, nil
}
