package persist

import (
	"os"
	"path/filepath"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/bz888/quill/internal/transcript"
)

// WriteSnapshot replaces the file at path with the encoded transcript. The data is
// written to a sibling temp file first and renamed over path.
func WriteSnapshot(path string, msgs []transcript.Message) error {
	data, err := EncodeSnapshot(msgs)
	if err != nil {
		return writeErr("failed to encode snapshot", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return writeErr("failed to write snapshot "+path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return writeErr("failed to write snapshot "+path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return writeErr("failed to write snapshot "+path, err)
	}
	if err := os.Chmod(tmpName, snapshotMode(path)); err != nil {
		os.Remove(tmpName)
		return writeErr("failed to write snapshot "+path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return writeErr("failed to write snapshot "+path, err)
	}
	return nil
}

// snapshotMode keeps the permissions of an existing snapshot.
func snapshotMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return 0o644
}

// AppendReadable adds one entry to the end of the readable log at path.
func AppendReadable(path string, m transcript.Message) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return writeErr("failed to open readable log "+path, err)
	}
	if _, err := f.WriteString(FormatEntry(m)); err != nil {
		f.Close()
		return writeErr("failed to append readable log "+path, err)
	}
	if err := f.Close(); err != nil {
		return writeErr("failed to append readable log "+path, err)
	}
	return nil
}

// ExportSnapshot writes the whole transcript to path, adding .json if needed, and
// returns the path written.
func ExportSnapshot(path string, msgs []transcript.Message) (string, error) {
	path = NormalizeExt(path, SnapshotExt)
	if err := WriteSnapshot(path, msgs); err != nil {
		return "", err
	}
	return path, nil
}

// ExportReadable writes the whole transcript in readable form to path, adding .txt if
// needed, and returns the path written.
func ExportReadable(path string, msgs []transcript.Message) (string, error) {
	path = NormalizeExt(path, ReadableExt)

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(FormatEntry(m))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", writeErr("failed to export readable transcript "+path, err)
	}
	return path, nil
}

// ImportSnapshot loads a snapshot and the Target that continues writing to it.
// Nothing is modified; callers decide whether to adopt the result.
func ImportSnapshot(path string) ([]transcript.Message, Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Target{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("failed to read snapshot " + path).
			WithCause(err)
	}

	msgs, err := DecodeSnapshot(data)
	if err != nil {
		return nil, Target{}, err
	}
	return msgs, TargetFor(path), nil
}

func writeErr(msg string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(cause)
}
