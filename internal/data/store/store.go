// Package store persists finished builds in sqlite so repeated requests
// for the same module and options skip the transform entirely.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alienzhou/esm.sh/internal/compiler/resolver"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Build is one persisted compile result.
type Build struct {
	ID          string
	Path        string
	Fingerprint string
	Code        string
	SourceMap   string
	Deps        []resolver.DependencyDescriptor
	CreatedAt   time.Time
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save upserts one build keyed by (path, fingerprint). A missing build ID
// is assigned.
func (s *Store) Save(b Build) (Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(b.Path) == "" {
		return b, fmt.Errorf("build path must not be empty")
	}
	if strings.TrimSpace(b.Fingerprint) == "" {
		return b, fmt.Errorf("build fingerprint must not be empty")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	deps, err := json.Marshal(b.Deps)
	if err != nil {
		return b, fmt.Errorf("encode deps: %w", err)
	}

	query := `
INSERT INTO builds (path, fingerprint, build_id, code, source_map, deps, created_at_utc)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path, fingerprint) DO UPDATE SET
  build_id=excluded.build_id,
  code=excluded.code,
  source_map=excluded.source_map,
  deps=excluded.deps,
  created_at_utc=excluded.created_at_utc
`
	err = s.withRetry("save build", func() error {
		_, err := s.db.Exec(query,
			b.Path, b.Fingerprint, b.ID, b.Code, b.SourceMap,
			string(deps), b.CreatedAt.Format(time.RFC3339Nano))
		return err
	})
	return b, err
}

// Load returns the build stored for (path, fingerprint), reporting whether
// one exists.
func (s *Store) Load(path, fingerprint string) (Build, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		b       Build
		deps    string
		created string
	)
	query := `SELECT build_id, code, source_map, deps, created_at_utc FROM builds WHERE path = ? AND fingerprint = ?`
	err := s.withRetry("load build", func() error {
		return s.db.QueryRow(query, path, fingerprint).Scan(&b.ID, &b.Code, &b.SourceMap, &deps, &created)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Build{}, false, nil
		}
		return Build{}, false, err
	}

	b.Path = path
	b.Fingerprint = fingerprint
	if deps != "" {
		if err := json.Unmarshal([]byte(deps), &b.Deps); err != nil {
			return Build{}, false, fmt.Errorf("decode deps: %w", err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		b.CreatedAt = ts
	}
	return b, true, nil
}

// Invalidate removes every stored build for path, regardless of options.
func (s *Store) Invalidate(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("invalidate builds", func() error {
		_, err := s.db.Exec(`DELETE FROM builds WHERE path = ?`, path)
		return err
	})
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// Fingerprint derives the cache key for one compile from the source bytes
// and every option that changes the output.
func Fingerprint(source []byte, parts ...string) string {
	h := sha256.New()
	h.Write(source)
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
