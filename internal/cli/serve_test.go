package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeCommand(t *testing.T) {
	// cobra keeps flag values between executions, so --help runs last.
	t.Run("invalid port", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), nil)

		_, err := executeCommand(t, "serve", "--config", path, "--port=-1")
		assert.ErrorContains(t, err, "invalid gateway port")
	})

	t.Run("help text", func(t *testing.T) {
		output, err := executeCommand(t, "serve", "--help")
		assert.NoError(t, err)
		assert.Contains(t, output, "/ws")
		assert.Contains(t, output, "--secret")
	})
}

func TestDemoCommand(t *testing.T) {
	output, err := executeCommand(t, "demo", "--help")
	assert.NoError(t, err)
	assert.Contains(t, output, "exit transition")
	assert.Contains(t, output, "--exit-ms")
}
