package local

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

// Watch polls the user's cart file and invokes fn with the current items
// whenever the record changes on disk. This is the cross-process analog of
// the browser's storage event: it only observes local-store writes. Remote
// mutations made by other processes produce no signal here.
//
// Watch blocks until ctx is cancelled; run it in its own goroutine. A
// non-positive interval falls back to one second.
func (s *Store) Watch(ctx context.Context, userID string, interval time.Duration, fn func(items []cart.Item)) {
	if interval <= 0 {
		interval = time.Second
	}
	path := s.path(userID)
	last := s.stamp(path)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := s.stamp(path)
			if cur == last {
				continue
			}
			last = cur

			items, err := s.Get(userID)
			if err != nil {
				s.lg.Warn("watch read failed", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			fn(items)
		}
	}
}

// fileStamp identifies a file version by modification time and size.
// A missing file has the zero stamp.
type fileStamp struct {
	mod  int64
	size int64
}

func (s *Store) stamp(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: fi.ModTime().UnixNano(), size: fi.Size()}
}
