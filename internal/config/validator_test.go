package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateRoute(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateRoute("main"))
	assert.Error(t, v.ValidateRoute(""))
	assert.Error(t, v.ValidateRoute("   "))
	assert.Error(t, v.ValidateRoute("main:1"))
}

func TestValidateSharedSecret(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSharedSecret(""))
	assert.NoError(t, v.ValidateSharedSecret("0123456789abcdef"))
	assert.Error(t, v.ValidateSharedSecret("short"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	assert.Empty(t, v.ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Gateway.Port = -1
	cfg.Gateway.SharedSecret = "short"
	cfg.Demo.Routes = []string{"main", "bad:route"}

	errs := v.ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}
