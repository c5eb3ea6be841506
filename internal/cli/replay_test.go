package cli

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../pkg/scenario/testdata"

func TestReplayCommand(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), nil)

		output, err := executeCommand(t, "replay", "--config", path, filepath.Join(scenarioDir, "force_third.json"))
		require.NoError(t, err)

		assert.Contains(t, output, "ok   open two drawers, then force open a third one, then close it")
		assert.Contains(t, output, "drawer1 > drawer4 > drawer4~ > -")
	})

	t.Run("directory", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), nil)

		output, err := executeCommand(t, "replay", "--config", path, scenarioDir)
		require.NoError(t, err)

		files, err := expandScenarioPaths([]string{scenarioDir})
		require.NoError(t, err)
		assert.Equal(t, len(files), strings.Count(output, "ok   "))
		assert.NotContains(t, output, "FAIL")
	})

	t.Run("json lines", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), nil)

		output, err := executeCommand(t, "replay", "--json", "--config", path, filepath.Join(scenarioDir, "lock_drawers.json"))
		require.NoError(t, err)

		scanner := bufio.NewScanner(strings.NewReader(output))
		require.True(t, scanner.Scan())

		var res replayResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		assert.Equal(t, "lock drawers", res.Scenario)
		assert.NotEmpty(t, res.Frames)
		assert.Empty(t, res.Error)
	})

	t.Run("failed expectation", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, nil)
		file := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(file, []byte(`{
			"name": "broken",
			"steps": [
				{"op": "open", "id": "a", "app": true},
				{"op": "expect", "current": "b"}
			]
		}`), 0644))

		output, err := executeCommand(t, "replay", "--config", path, file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1 scenarios failed")
		assert.Contains(t, output, "FAIL broken")
		assert.Contains(t, output, "expected current")
	})

	t.Run("invalid file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, nil)
		file := filepath.Join(dir, "invalid.json")
		require.NoError(t, os.WriteFile(file, []byte(`{"steps": []}`), 0644))

		output, err := executeCommand(t, "replay", "--config", path, file)
		require.Error(t, err)
		assert.Contains(t, output, "FAIL "+file)
	})

	t.Run("requires an argument", func(t *testing.T) {
		_, err := executeCommand(t, "replay")
		assert.Error(t, err)
	})
}

func TestExpandScenarioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "c.yaml", ".hidden.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0644))
	}
	single := filepath.Join(t.TempDir(), "single.json")
	require.NoError(t, os.WriteFile(single, []byte(`{}`), 0644))

	files, err := expandScenarioPaths([]string{single, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "c.yaml"),
	}, files)

	_, err = expandScenarioPaths([]string{filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}
