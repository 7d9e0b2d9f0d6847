package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv_FallsBackToDefaultWhenUnset(t *testing.T) {
	t.Setenv("CONFIG_TEST_UNSET_KEY", "")
	assert.Equal(t, "fallback", getEnv("CONFIG_TEST_KEY_DOES_NOT_EXIST", "fallback", nil))
}

func TestGetEnv_PrefersEnvValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", getEnv("CONFIG_TEST_KEY", "fallback", nil))
}

func TestGetEnvOverlayStr_OverlayBeatsDefaultButEnvWinsOverBoth(t *testing.T) {
	overlay := "from-overlay"
	assert.Equal(t, "from-overlay", getEnvOverlayStr("CONFIG_TEST_OVERLAY_KEY", "fallback", &overlay, nil))

	t.Setenv("CONFIG_TEST_OVERLAY_KEY", "from-env")
	assert.Equal(t, "from-env", getEnvOverlayStr("CONFIG_TEST_OVERLAY_KEY", "fallback", &overlay, nil))
}

func TestGetEnvAsInt_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT_KEY", "not-a-number")
	assert.Equal(t, 42, getEnvAsInt("CONFIG_TEST_INT_KEY", 42, nil))
}

func TestGetEnvAsInt_ParsesValidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT_KEY", "7")
	assert.Equal(t, 7, getEnvAsInt("CONFIG_TEST_INT_KEY", 42, nil))
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"true", true}, {"1", true}, {"yes", true}, {"on", true},
		{"false", false}, {"0", false}, {"no", false}, {"off", false},
	}
	for _, tt := range tests {
		t.Setenv("CONFIG_TEST_BOOL_KEY", tt.val)
		assert.Equal(t, tt.want, getEnvAsBool("CONFIG_TEST_BOOL_KEY", !tt.want, nil))
	}
}
