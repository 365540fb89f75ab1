package persist

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	SnapshotExt = ".json"
	ReadableExt = ".txt"
)

// Target is where a session mirrors its transcript: a structured snapshot that is
// rewritten on every append and a readable log that only grows.
type Target struct {
	Snapshot string
	Log      string
}

// DefaultTarget names a fresh pair of files in dir after the session start time.
func DefaultTarget(dir string, now time.Time) Target {
	name := "conversation_" + now.Format("20060102_150405")
	return Target{
		Snapshot: absPath(filepath.Join(dir, name+SnapshotExt)),
		Log:      absPath(filepath.Join(dir, name+ReadableExt)),
	}
}

// TargetFor points future writes at an existing snapshot, with the log beside it. A
// snapshot that already carries the readable extension gets the extension appended so
// the two files never coincide.
func TargetFor(snapshotPath string) Target {
	snapshot := absPath(snapshotPath)
	log := strings.TrimSuffix(snapshot, filepath.Ext(snapshot)) + ReadableExt
	if strings.EqualFold(log, snapshot) {
		log = snapshot + ReadableExt
	}
	return Target{
		Snapshot: snapshot,
		Log:      log,
	}
}

// NormalizeExt appends ext unless path already ends with it, ignoring case.
func NormalizeExt(path, ext string) string {
	if strings.HasSuffix(strings.ToLower(path), ext) {
		return path
	}
	return path + ext
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
