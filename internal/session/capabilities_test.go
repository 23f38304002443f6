// internal/session/capabilities_test.go
package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCapabilitiesEmptyPathUsesDefaults(t *testing.T) {
	caps, err := LoadCapabilities("")
	require.NoError(t, err)
	assert.Equal(t, "Android", caps.PlatformName)
	assert.Equal(t, "emulator-5554", caps.DeviceName)
}

func TestLoadCapabilitiesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixel.yaml")
	profile := `
platform_name: Android
device_name: pixel-7
app_id: com.example.shop
app_activity: .MainActivity
extra:
  appium:noReset: true
`
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

	caps, err := LoadCapabilities(path)
	require.NoError(t, err)
	assert.Equal(t, "pixel-7", caps.DeviceName)
	assert.Equal(t, "com.example.shop", caps.AppID)

	m := caps.ToMap()
	assert.Equal(t, "Android", m["platformName"])
	assert.Equal(t, "pixel-7", m["appium:deviceName"])
	assert.Equal(t, "com.example.shop", m["appium:appPackage"])
	assert.Equal(t, ".MainActivity", m["appium:appActivity"])
	assert.Equal(t, true, m["appium:noReset"])
}

func TestLoadCapabilitiesMissingFile(t *testing.T) {
	_, err := LoadCapabilities("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadCapabilitiesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform_name: [unclosed"), 0o644))
	_, err := LoadCapabilities(path)
	assert.Error(t, err)
}
