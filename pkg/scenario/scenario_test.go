package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid scenario", func(t *testing.T) {
		sc, err := Parse([]byte(`{
			"name": "basic",
			"auto_ack": true,
			"steps": [
				{"op": "push", "route": "main"},
				{"op": "open", "id": "receive", "payload": {"title": "Receive"}},
				{"op": "expect", "current": "receive", "pending": []}
			]
		}`))
		require.NoError(t, err)
		assert.Equal(t, "basic", sc.Name)
		assert.True(t, sc.AutoAck)
		require.Len(t, sc.Steps, 3)
		assert.Equal(t, OpOpen, sc.Steps[1].Op)
		assert.Equal(t, map[string]interface{}{"title": "Receive"}, sc.Steps[1].Payload)
		require.NotNil(t, sc.Steps[2].Current)
		assert.Equal(t, "receive", *sc.Steps[2].Current)
		assert.NotNil(t, sc.Steps[2].Pending)
		assert.Empty(t, sc.Steps[2].Pending)
	})

	tests := []struct {
		name    string
		data    string
		message string
	}{
		{name: "missing name", data: `{"steps":[{"op":"lock"}]}`, message: "name"},
		{name: "empty steps", data: `{"name":"x","steps":[]}`, message: "steps"},
		{name: "unknown op", data: `{"name":"x","steps":[{"op":"jump"}]}`, message: "op"},
		{name: "open without id", data: `{"name":"x","steps":[{"op":"open"}]}`, message: "id"},
		{name: "push without route", data: `{"name":"x","steps":[{"op":"push"}]}`, message: "route"},
		{name: "route with separator", data: `{"name":"x","steps":[{"op":"push","route":"a:b"}]}`, message: "route"},
		{name: "expect without current", data: `{"name":"x","steps":[{"op":"expect"}]}`, message: "current"},
		{name: "unknown field", data: `{"name":"x","steps":[{"op":"lock","bogus":1}]}`, message: "bogus"},
		{name: "malformed", data: `{"name":`, message: "schema validation error"},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads testdata", func(t *testing.T) {
		sc, err := Load(filepath.Join("testdata", "force_third.json"))
		require.NoError(t, err)
		assert.Equal(t, "open two drawers, then force open a third one, then close it", sc.Name)
	})

	t.Run("loads yaml", func(t *testing.T) {
		sc, err := Load(filepath.Join("testdata", "reopen_while_closing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "reopen a drawer while its close is still playing", sc.Name)
		assert.Len(t, sc.Steps, 8)
	})

	t.Run("yaml goes through the schema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("name: bad\nsteps:\n  - op: fly\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseYAML([]byte("name: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse scenario YAML")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read scenario file")
	})

	t.Run("invalid file names path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"bad"}`), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}

func TestIsScenarioFile(t *testing.T) {
	assert.True(t, IsScenarioFile("a.json"))
	assert.True(t, IsScenarioFile("a.yaml"))
	assert.True(t, IsScenarioFile("dir/a.YML"))
	assert.False(t, IsScenarioFile("a.md"))
	assert.False(t, IsScenarioFile("json"))
}
