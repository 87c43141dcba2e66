package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "dstore", cmd.Use)
	assert.Contains(t, cmd.Long, ".ds.json")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	commands := []string{"serve", "list", "get", "put", "patch", "rm", "export", "import", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("dir"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("window"))
	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestStoreFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"list", "get", "put", "patch", "rm", "export", "import"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			storeFlag := sub.Flags().Lookup("store")
			require.NotNil(t, storeFlag)
			assert.Equal(t, "s", storeFlag.Shorthand)
			assert.Equal(t, "stream-items", storeFlag.DefValue)
		})
	}
}

func TestWhereFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"list", "patch", "rm"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		whereFlag := sub.Flags().Lookup("where")
		require.NotNil(t, whereFlag, name)
		assert.Equal(t, "w", whereFlag.Shorthand)
	}
}

func TestArchiveCommandFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"export", "import"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		dbFlag := sub.Flags().Lookup("db")
		require.NotNil(t, dbFlag, name)
		// --db is required, so default is empty
		assert.Equal(t, "", dbFlag.DefValue)
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	listenFlag := serveCmd.Flags().Lookup("listen")
	require.NotNil(t, listenFlag)
	assert.Equal(t, "l", listenFlag.Shorthand)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetArgs([]string{"--format", "invalid", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestNegativeWindow(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetArgs([]string{"--window", "-1s", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	opts := &RootOptions{Dir: "/data"}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Dir)
	require.Len(t, cfg.Stores, 1)
	assert.Equal(t, "stream-items", cfg.Stores[0].Name)
	assert.Equal(t, "/stream-item", cfg.Stores[0].Route)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	opts := &RootOptions{Config: "does-not-exist.yaml"}
	_, err := opts.loadConfig()
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}
