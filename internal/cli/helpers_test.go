package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout.
// Package-level flag variables are reset first since the command tree is
// shared between tests.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	replayWatch = false
	replayJSON = false
	configForce = false
	demoExitMs = -1
	cfgFile = ""

	cmd := GetRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a config file that keeps logs quiet and points the
// data dir at dir. extra entries are merged in at the top level.
func writeConfig(t *testing.T, dir string, extra map[string]interface{}) string {
	t.Helper()

	cfg := map[string]interface{}{
		"data_dir": dir,
		"logging":  map[string]interface{}{"level": "info", "console": false},
	}
	for k, v := range extra {
		cfg[k] = v
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "drawerq.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
