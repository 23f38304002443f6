// internal/session/capabilities.go
package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Capabilities is a device capability profile, normally loaded from a YAML
// file. Extra holds backend-specific keys that pass through to the wire
// untouched.
type Capabilities struct {
	PlatformName string         `yaml:"platform_name"`
	DeviceName   string         `yaml:"device_name"`
	AppID        string         `yaml:"app_id"`
	AppActivity  string         `yaml:"app_activity"`
	Extra        map[string]any `yaml:"extra"`
}

// DefaultCapabilities returns a minimal Android profile.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		PlatformName: "Android",
		DeviceName:   "emulator-5554",
	}
}

// LoadCapabilities reads a capability profile from a YAML file. An empty
// path returns the default profile.
func LoadCapabilities(path string) (Capabilities, error) {
	if path == "" {
		return DefaultCapabilities(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Capabilities{}, fmt.Errorf("session: read capability profile: %w", err)
	}
	caps := DefaultCapabilities()
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return Capabilities{}, fmt.Errorf("session: parse capability profile %s: %w", path, err)
	}
	return caps, nil
}

// ToMap renders the profile as the wire capability object.
func (c Capabilities) ToMap() map[string]any {
	m := map[string]any{
		"platformName": c.PlatformName,
	}
	if c.DeviceName != "" {
		m["appium:deviceName"] = c.DeviceName
	}
	if c.AppID != "" {
		m["appium:appPackage"] = c.AppID
	}
	if c.AppActivity != "" {
		m["appium:appActivity"] = c.AppActivity
	}
	for k, v := range c.Extra {
		m[k] = v
	}
	return m
}
