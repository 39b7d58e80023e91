package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// persistInterval bounds how often the status file is rewritten while a
// run is in progress; the in-memory copy is updated on every transition
// regardless.
const persistInterval = 100 * time.Millisecond

// writeStatusFile saves status to path atomically: write to a sibling
// temp file, fsync, then rename over the target, so a crash mid-write
// never leaves a half-written status file behind.
func writeStatusFile(path string, status core.Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadPersistedStatus loads the on-disk status snapshot as-is, with no
// crash-tolerance reinterpretation -- unlike New, which resets a
// running/paused status to idle on the assumption that constructing a
// Controller means the prior process crashed. Callers that only want to
// observe a status a "serve" process may still be actively writing (e.g.
// the CLI's "status" command) should use this instead of New.
func ReadPersistedStatus(path string) (core.Status, error) {
	return readStatusFile(path)
}

// readStatusFile loads a persisted status, returning the zero value and no
// error if the file doesn't exist (fresh install, never indexed before).
func readStatusFile(path string) (core.Status, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return core.Status{}, nil
	}
	if err != nil {
		return core.Status{}, err
	}
	var status core.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return core.Status{}, err
	}
	return status, nil
}

// appendLogRing appends entry to ring, trimming from the front once size
// exceeds max.
func appendLogRing(ring []core.LogEntry, entry core.LogEntry, max int) []core.LogEntry {
	ring = append(ring, entry)
	if len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}
