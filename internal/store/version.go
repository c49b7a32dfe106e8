package store

import "time"

const (
	// maxSaveAttempts bounds version-conflict retries in SaveDocument.
	maxSaveAttempts = 3

	// versionBump is the minimum spacing between version timestamps of
	// the same document.
	versionBump = time.Second
)

// saveRetryDelay returns the backoff before the next save attempt.
// Linear: 100ms, 200ms.
func saveRetryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 100 * time.Millisecond
}

// nextVersionTimestamp picks the created_at for a new version: wall
// clock time, pushed forward when the latest version's timestamp is too
// close. Keeps version history strictly ordered even when the clock
// stalls or runs behind a previous writer.
func (s *Store) nextVersionTimestamp(latest Document) time.Time {
	ts := s.now().UTC().Truncate(time.Second)
	if !latest.CreatedAt.IsZero() {
		if min := latest.CreatedAt.Add(versionBump); ts.Before(min) {
			ts = min
		}
	}
	return ts
}
