package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/testutil"
)

func TestOpen_CreatesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	s := openTestStoreIn[item](t, dir, "items", testutil.NewFakeClock())

	assert.Equal(t, filepath.Join(dir, "items.ds.json"), s.Path())
	assert.Equal(t, "[]", readFile(t, s))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, StateClean, s.State())
}

func TestOpen_LoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := `[{"id":3,"name":"c"},{"id":1,"name":"a"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.ds.json"), []byte(content), 0o644))

	s := openTestStoreIn[item](t, dir, "items", testutil.NewFakeClock())

	assert.Equal(t, []item{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}}, s.ReadAll())
	assert.True(t, IsDuplicateKey(s.Create(item{ID: 3})))
}

func TestOpen_EmptyFileIsEmptyCollection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.ds.json"), []byte("\n"), 0o644))

	s := openTestStoreIn[item](t, dir, "items", testutil.NewFakeClock())

	assert.Equal(t, 0, s.Len())
}

func TestOpen_RejectsDuplicateIDsInFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.ds.json"), []byte(`[{"id":1},{"id":1}]`), 0o644))

	_, err := Open[item]("items", WithDir(dir), WithLogger(discardLogger()))

	assert.True(t, IsDuplicateKey(err))
}

func TestOpen_RejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.ds.json"), []byte(`{"id":1`), 0o644))

	_, err := Open[item]("items", WithDir(dir), WithLogger(discardLogger()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestOpen_InvalidNames(t *testing.T) {
	for _, name := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
		t.Run(name, func(t *testing.T) {
			_, err := Open[item](name, WithDir(t.TempDir()), WithLogger(discardLogger()))
			assert.Error(t, err)
		})
	}
}

func TestOpen_RegistersShutdownHook(t *testing.T) {
	reg := &hookRecorder{}
	s, _ := openTestStore[item](t, "items", WithShutdownHooks(reg))
	require.Len(t, reg.names, 1)
	assert.Equal(t, "store:items", reg.names[0])

	require.NoError(t, s.Create(item{ID: 1}))
	require.NoError(t, reg.hooks[0]("SIGINT"))

	assert.Equal(t, `[{"id":1}]`, readFile(t, s))
}

type hookRecorder struct {
	names []string
	hooks []func(string) error
}

func (r *hookRecorder) Register(name string, hook func(reason string) error) {
	r.names = append(r.names, name)
	r.hooks = append(r.hooks, hook)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clk := testutil.NewFakeClock()
	first := openTestStoreIn[record.Document](t, dir, "docs", clk)

	docs := []record.Document{
		{"id": 10, "name": "ten", "tags": []any{"x", "y"}},
		{"id": 2, "nested": map[string]any{"ok": true}},
		{"id": 7, "ratio": 0.5, "missing": nil},
	}
	for _, d := range docs {
		require.NoError(t, first.Create(d))
	}
	clk.Advance(DefaultQuietWindow)
	syncStore(t, first)
	require.NoError(t, first.Close())

	second := openTestStoreIn[record.Document](t, dir, "docs", clk)
	got := second.ReadAll()

	require.Len(t, got, 3)
	for i, d := range got {
		assert.Equal(t, docs[i].RecordID(), d.RecordID())
	}
	assert.Equal(t, readFile(t, first), readFile(t, second))
}

func TestScenarioC_UpdateMissingLeavesFile(t *testing.T) {
	dir := t.TempDir()
	clk := testutil.NewFakeClock()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.ds.json"), []byte(`[{"id":2,"name":"b"}]`), 0o644))
	s := openTestStoreIn[record.Document](t, dir, "items", clk)

	err := s.Update(99, record.Patch{"coop": true})

	assert.True(t, IsNotFound(err))
	clk.Advance(DefaultQuietWindow)
	syncStore(t, s)
	assert.Equal(t, `[{"id":2,"name":"b"}]`, readFile(t, s))
	assert.Equal(t, StateClean, s.State())
}

func TestNormalizeName(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	got, err := NormalizeName("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", got)

	got, err = NormalizeName("  stream-items ")
	require.NoError(t, err)
	assert.Equal(t, "stream-items", got)
}

func TestPathFor(t *testing.T) {
	p, err := PathFor("/data", "items")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "items.ds.json"), p)

	_, err = PathFor("/data", "../x")
	assert.Error(t, err)
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.ds.json")

	require.NoError(t, WriteFileAtomic(path, []byte("[1]")))
	require.NoError(t, WriteFileAtomic(path, []byte("[2]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(data))
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x.ds.json"), []byte("[]"))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "clean", StateClean.String())
	assert.Equal(t, "dirty-pending", StateDirtyPending.String())
	assert.Equal(t, "flushing", StateFlushing.String())
	assert.Equal(t, "emergency-done", StateEmergencyDone.String())
}
