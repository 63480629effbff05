package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Token string `validate:"required"`
	Port  uint16 `validate:"gt=0"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(testConfig{Token: "abc", Port: 9000}))
	assert.Error(t, Validate(testConfig{Port: 9000}))
	assert.Error(t, Validate(testConfig{Token: "abc"}))
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "SignalFx.Token", stripPrefix("Configuration.SignalFx.Token"))
	assert.Equal(t, "Token", stripPrefix("Token"))
}
