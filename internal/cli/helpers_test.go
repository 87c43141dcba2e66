package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the CLI against dir and returns stdout.
func execute(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand(nil)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--dir", dir}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".ds.json"), []byte(content), 0644))
}

func storeFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+".ds.json"))
	require.NoError(t, err)
	return string(data)
}
