// Package local implements the file-backed fallback cart store. It models
// the per-user key-value storage of the original client: one record per user
// holding the JSON-serialized item list.
package local

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

// StorageError indicates a local persistence failure (disk full, permission
// denied, serialization). Reads never produce it: corrupt state is treated as
// an empty cart.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local cart storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists one cart file per user under a state directory.
type Store struct {
	dir string
	lg  *zap.Logger
}

// NewStore creates the state directory if needed and returns a Store.
func NewStore(dir string, lg *zap.Logger) (*Store, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}
	return &Store{dir: dir, lg: lg}, nil
}

// Get reads the user's cart. Missing or structurally corrupt data (non-JSON,
// non-array) yields an empty cart; entries that fail to decode or lack a
// string id or a positive quantity are dropped individually. Get never
// returns a parse error to the caller.
func (s *Store) Get(userID string) ([]cart.Item, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Err: err}
	}

	items, err := decodeItems(data)
	if err != nil {
		s.lg.Warn("discarding corrupt cart state",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, nil
	}
	return filterItems(items), nil
}

// Set replaces the user's cart. The write is atomic: data is written to a
// temp file in the same directory and renamed over the target.
func (s *Store) Set(userID string, items []cart.Item) error {
	data, err := encodeItems(items)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}

	path := s.path(userID)
	tmp, err := os.CreateTemp(s.dir, ".cart-*")
	if err != nil {
		return &StorageError{Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &StorageError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Op: "rename", Err: err}
	}
	return nil
}

// Remove deletes the user's cart record. Removing an absent record is a no-op.
func (s *Store) Remove(userID string) error {
	if err := os.Remove(s.path(userID)); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Err: err}
	}
	return nil
}

// path derives the storage key for a user deterministically. The readable
// part is sanitized for the filesystem; an fnv-32a suffix keeps distinct
// user ids from colliding after sanitization.
func (s *Store) path(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))

	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := fmt.Sprintf("cart_%s_%08x.json", b.String(), h.Sum32())
	return filepath.Join(s.dir, name)
}

// filterItems drops entries that lack a usable product id or a positive
// quantity, tolerating partially-corrupted persisted state.
func filterItems(items []cart.Item) []cart.Item {
	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" || it.Quantity <= 0 {
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
