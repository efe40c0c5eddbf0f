package sqlite

import (
	"strings"
	"time"
)

// retryOnBusy runs fn, retrying with linear backoff while SQLite reports the
// database as locked. WAL mode makes contention rare, but the pipeline's
// frame-metrics writes and an interval snapshot persist can still collide.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
