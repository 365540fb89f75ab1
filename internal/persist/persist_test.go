package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bz888/quill/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestDefaultTarget(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 5, 3, 0, time.Local)

	target := DefaultTarget(dir, now)
	assert.Equal(t, filepath.Join(dir, "conversation_20261017_090503.json"), target.Snapshot)
	assert.Equal(t, filepath.Join(dir, "conversation_20261017_090503.txt"), target.Log)
}

func TestTargetForSwapsExtension(t *testing.T) {
	dir := t.TempDir()

	target := TargetFor(filepath.Join(dir, "chat.JSON"))
	assert.Equal(t, filepath.Join(dir, "chat.JSON"), target.Snapshot)
	assert.Equal(t, filepath.Join(dir, "chat.txt"), target.Log)

	target = TargetFor(filepath.Join(dir, "notes"))
	assert.Equal(t, filepath.Join(dir, "notes.txt"), target.Log)
}

func TestTargetForReadableExtensionKeepsFilesApart(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"saved.txt", "saved.TXT"} {
		target := TargetFor(filepath.Join(dir, name))
		assert.Equal(t, filepath.Join(dir, name), target.Snapshot)
		assert.Equal(t, filepath.Join(dir, name+".txt"), target.Log)
	}
}

func TestWriteSnapshotKeepsExistingMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "private.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))

	require.NoError(t, WriteSnapshot(path, []transcript.Message{{Role: transcript.RoleUser, Content: "hi"}}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	fresh := filepath.Join(dir, "fresh.json")
	require.NoError(t, WriteSnapshot(fresh, nil))
	info, err = os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestNormalizeExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"out", ".json", "out.json"},
		{"out.json", ".json", "out.json"},
		{"OUT.JSON", ".json", "OUT.JSON"},
		{"out.txt", ".json", "out.txt.json"},
		{"log", ".txt", "log.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeExt(tt.path, tt.ext))
	}
}

func TestAdapterRecord(t *testing.T) {
	dir := t.TempDir()
	target := DefaultTarget(dir, time.Now())
	tr := transcript.New(NewAdapter(target))

	_, err := tr.Append(transcript.RoleUser, "hello")
	require.NoError(t, err)
	_, err = tr.Append(transcript.RoleAssistant, "hi there")
	require.NoError(t, err)

	assert.JSONEq(t,
		`[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}]`,
		readFile(t, target.Snapshot))
	assert.Equal(t, "You: hello\n\nAssistant: hi there\n\n", readFile(t, target.Log))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestAdapterRecordWritesLogWhenSnapshotFails(t *testing.T) {
	dir := t.TempDir()
	target := Target{
		Snapshot: filepath.Join(dir, "snapshot.json"),
		Log:      filepath.Join(dir, "snapshot.txt"),
	}
	require.NoError(t, os.Mkdir(target.Snapshot, 0o755))

	a := NewAdapter(target)
	err := a.Record([]transcript.Message{{Role: transcript.RoleUser, Content: "hi"}},
		transcript.Message{Role: transcript.RoleUser, Content: "hi"})

	assert.Error(t, err)
	assert.Equal(t, "You: hi\n\n", readFile(t, target.Log))
}

func TestAdapterRecordReportsBothFailures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	a := NewAdapter(DefaultTarget(missing, time.Now()))

	m := transcript.Message{Role: transcript.RoleUser, Content: "hi"}
	err := a.Record([]transcript.Message{m}, m)

	require.Error(t, err)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 2)
}

func TestEncodeSnapshot(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = EncodeSnapshot([]transcript.Message{{Role: transcript.RoleUser, Content: "<b>olá</b>"}})
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"role\": \"user\",\n        \"content\": \"<b>olá</b>\"\n    }\n]\n", string(data))
}

func TestDecodeSnapshotRejects(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		index int
	}{
		{"not json", `[{"role":`, -1},
		{"object", `{"role":"user","content":"x"}`, -1},
		{"null", `null`, -1},
		{"string", `"hello"`, -1},
		{"element not object", `[{"role":"user","content":"a"}, 3]`, 1},
		{"null element", `[null]`, 0},
		{"missing role", `[{"content":"x"}]`, 0},
		{"empty role", `[{"role":"","content":"x"}]`, 0},
		{"numeric role", `[{"role":1,"content":"x"}]`, 0},
		{"missing content", `[{"role":"user"}]`, 0},
		{"null content", `[{"role":"user","content":null}]`, 0},
		{"array content", `[{"role":"user","content":["x"]}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.data))
			var fe *transcript.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.index, fe.Index)
		})
	}
}

func TestDecodeSnapshotAcceptsEmptyArrayAndExtraFields(t *testing.T) {
	msgs, err := DecodeSnapshot([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = DecodeSnapshot([]byte(`[{"role":"tool","content":"","name":"search"}]`))
	require.NoError(t, err)
	assert.Equal(t, []transcript.Message{{Role: "tool", Content: ""}}, msgs)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := []transcript.Message{
		{Role: transcript.RoleSystem, Content: "be brief"},
		{Role: transcript.RoleUser, Content: "hello\nworld"},
		{Role: transcript.RoleAssistant, Content: "hi \"there\""},
	}

	path, err := ExportSnapshot(filepath.Join(dir, "export"), want)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "export.json"), path)

	got, target, err := ImportSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, filepath.Join(dir, "export.txt"), target.Log)
}

func TestImportThenExportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.json")
	saved := `[
  {"role": "system", "content": "x"},
  {"role": "user", "content": "y"}
]`
	require.NoError(t, os.WriteFile(src, []byte(saved), 0o644))

	msgs, _, err := ImportSnapshot(src)
	require.NoError(t, err)

	out, err := ExportSnapshot(filepath.Join(dir, "out.json"), msgs)
	require.NoError(t, err)
	assert.JSONEq(t, saved, readFile(t, out))
}

func TestImportSnapshotMissingFile(t *testing.T) {
	_, _, err := ImportSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestExportReadable(t *testing.T) {
	dir := t.TempDir()
	msgs := []transcript.Message{
		{Role: transcript.RoleUser, Content: "hello"},
		{Role: transcript.RoleAssistant, Content: "hi"},
		{Role: "system", Content: "x"},
	}

	path, err := ExportReadable(filepath.Join(dir, "chat"), msgs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat.txt"), path)
	assert.Equal(t, "You: hello\n\nAssistant: hi\n\nsystem: x\n\n", readFile(t, path))

	// a second export overwrites rather than appends
	_, err = ExportReadable(path, msgs[:1])
	require.NoError(t, err)
	assert.Equal(t, "You: hello\n\n", readFile(t, path))
}

func TestRetargetRedirectsWrites(t *testing.T) {
	dir := t.TempDir()
	a := NewAdapter(DefaultTarget(dir, time.Now()))
	next := TargetFor(filepath.Join(dir, "imported.json"))
	a.Retarget(next)

	m := transcript.Message{Role: transcript.RoleUser, Content: "after"}
	require.NoError(t, a.Record([]transcript.Message{m}, m))

	assert.Equal(t, next, a.Target())
	assert.FileExists(t, next.Snapshot)
	assert.Equal(t, "You: after\n\n", readFile(t, next.Log))
}
