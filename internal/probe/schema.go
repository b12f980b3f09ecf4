package probe

import (
	"bytes"
	"encoding/json"
	"strings"
)

// HealthyStatus is the only status value accepted as a live appliance
const HealthyStatus = "healthy"

// Health is the declared schema of the appliance health endpoint.
type Health struct {
	Status   string          `json:"status"`
	Platform string          `json:"platform,omitempty"`
	DeviceID string          `json:"device_id,omitempty"`
	Version  string          `json:"version,omitempty"`
	Recorder json.RawMessage `json:"recorder,omitempty"`
}

// hasMarker reports whether any appliance-specific field is present
func (h *Health) hasMarker() bool {
	if strings.TrimSpace(h.Platform) != "" || strings.TrimSpace(h.DeviceID) != "" {
		return true
	}
	rec := bytes.TrimSpace(h.Recorder)
	return len(rec) > 0 && !bytes.Equal(rec, []byte("null"))
}

// HealthResult is the outcome of validating a health response.
type HealthResult struct {
	Match  bool
	Reason string
	Health Health
}

// ValidateHealth checks a health body against the declared schema.
func ValidateHealth(raw json.RawMessage) HealthResult {
	var h Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return HealthResult{Reason: "health body is not a JSON object"}
	}

	if h.Status != HealthyStatus {
		return HealthResult{Reason: "status is not healthy", Health: h}
	}

	if !h.hasMarker() {
		return HealthResult{Reason: "no appliance marker field", Health: h}
	}

	return HealthResult{Match: true, Health: h}
}

// Capabilities is the declared schema of the capability endpoint.
type Capabilities struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	Version    string `json:"version,omitempty"`
}

// ParseCapabilities decodes a capability body. It reports false when the
// body is not an object.
func ParseCapabilities(raw json.RawMessage) (Capabilities, bool) {
	var c Capabilities
	if err := json.Unmarshal(raw, &c); err != nil {
		return Capabilities{}, false
	}
	c.DeviceID = strings.TrimSpace(c.DeviceID)
	c.DeviceName = strings.TrimSpace(c.DeviceName)
	return c, true
}
