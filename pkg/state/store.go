// Package state persists the run state that makes the pipeline resumable:
// the pending-hash list, the progress cursor, the append-only failure log,
// and the account-hash cache. All files live under one state directory.
//
// Only one run may use a state directory at a time; there is no file
// locking, concurrent runs against the same directory are undefined.
package state

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
)

// State file names inside the store directory.
const (
	pendingFile      = "pending_hashes.txt"
	cursorFile       = "progress_cursor.txt"
	failedFile       = "failed_hashes.txt"
	accountCacheFile = "account_hashes.txt"
)

var (
	// ErrNoPending indicates no persisted pending list exists.
	ErrNoPending = errors.New("no pending list")

	// ErrCacheMiss indicates no account-hash cache is present.
	ErrCacheMiss = errors.New("cache miss")
)

// Store is a file-backed run-state store.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates the state directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logging.NewLogger("state"),
	}, nil
}

// SavePending writes the pending queue as a newline-delimited hash list.
func (s *Store) SavePending(pending []identifier.Identifier) error {
	var b strings.Builder
	for _, id := range pending {
		b.WriteString(id.String())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path(pendingFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write pending list: %w", err)
	}
	s.logger.Debug().Int("count", len(pending)).Msg("Pending list saved")
	return nil
}

// LoadPending reads the persisted pending queue. Returns ErrNoPending if
// the file does not exist.
func (s *Store) LoadPending() ([]identifier.Identifier, error) {
	f, err := os.Open(s.path(pendingFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoPending
		}
		return nil, fmt.Errorf("open pending list: %w", err)
	}
	defer f.Close()

	var pending []identifier.Identifier
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pending = append(pending, identifier.Normalize(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pending list: %w", err)
	}
	return pending, nil
}

// DeletePending removes the pending list. Missing file is not an error.
func (s *Store) DeletePending() error {
	if err := os.Remove(s.path(pendingFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete pending list: %w", err)
	}
	return nil
}

// SaveCursor persists the progress cursor.
func (s *Store) SaveCursor(cursor int) error {
	data := strconv.Itoa(cursor) + "\n"
	if err := os.WriteFile(s.path(cursorFile), []byte(data), 0o644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	s.logger.Debug().Int("cursor", cursor).Msg("Cursor saved")
	return nil
}

// LoadCursor reads the persisted cursor. A missing file means a fresh
// run and returns 0.
func (s *Store) LoadCursor() (int, error) {
	data, err := os.ReadFile(s.path(cursorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cursor: %w", err)
	}

	cursor, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse cursor: %w", err)
	}
	if cursor < 0 {
		return 0, fmt.Errorf("parse cursor: negative value %d", cursor)
	}
	return cursor, nil
}

// DeleteCursor removes the cursor file. Missing file is not an error.
func (s *Store) DeleteCursor() error {
	if err := os.Remove(s.path(cursorFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}

// AppendFailed records a permanently failed hash in the append-only
// failure log for manual or future replay.
func (s *Store) AppendFailed(id identifier.Identifier) error {
	f, err := os.OpenFile(s.path(failedFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(id.String() + "\n"); err != nil {
		return fmt.Errorf("append failure log: %w", err)
	}
	return nil
}

// LoadFailed reads the failure log. A missing file yields an empty list.
func (s *Store) LoadFailed() ([]identifier.Identifier, error) {
	data, err := os.ReadFile(s.path(failedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failure log: %w", err)
	}

	var failed []identifier.Identifier
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		failed = append(failed, identifier.Normalize(line))
	}
	return failed, nil
}

// SaveAccountCache writes the account hash set to the cache file.
func (s *Store) SaveAccountCache(set *identifier.Set) error {
	var b strings.Builder
	for _, id := range set.Slice() {
		b.WriteString(id.String())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path(accountCacheFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write account cache: %w", err)
	}
	s.logger.Debug().Int("count", set.Len()).Msg("Account cache saved")
	return nil
}

// LoadAccountCache reads the cached account hash set. A hit is trusted
// verbatim, it is never re-validated against the remote; freshness comes
// from the file's age instead. Returns ErrCacheMiss when no cache file
// exists, the file is older than DefaultAccountCacheTTL, or it holds no
// hashes.
func (s *Store) LoadAccountCache() (*identifier.Set, error) {
	info, err := os.Stat(s.path(accountCacheFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("stat account cache: %w", err)
	}
	if age := time.Since(info.ModTime()); age > DefaultAccountCacheTTL {
		s.logger.Debug().Dur("age", age).Msg("Account cache expired")
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(s.path(accountCacheFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("read account cache: %w", err)
	}

	set := identifier.NewSet()
	for _, line := range strings.Split(string(data), "\n") {
		set.Add(line)
	}
	if set.Len() == 0 {
		return nil, ErrCacheMiss
	}
	return set, nil
}

// DeleteAccountCache drops the cached account listing. Called after a
// batch changed the account so the next sync walks the listing fresh.
// Missing file is not an error.
func (s *Store) DeleteAccountCache() error {
	if err := os.Remove(s.path(accountCacheFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete account cache: %w", err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}
