package models

import "math"

// DeviceType - 디바이스 종류 (anchor, tag, device)
type DeviceType string

const (
	DeviceTypeAnchor DeviceType = "anchor" // 고정 기준점
	DeviceTypeTag    DeviceType = "tag"    // 이동 추적 대상 (애니메이션 대상)
	DeviceTypeDevice DeviceType = "device" // 기타 IoT 디바이스
)

// DeviceTypes lists every known device type in display order.
var DeviceTypes = []DeviceType{DeviceTypeAnchor, DeviceTypeTag, DeviceTypeDevice}

// Valid reports whether t is one of the known device types.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeAnchor, DeviceTypeTag, DeviceTypeDevice:
		return true
	}
	return false
}

// DefaultName returns the label used when a device arrives without a name.
func (t DeviceType) DefaultName() string {
	switch t {
	case DeviceTypeAnchor:
		return "Anchor"
	case DeviceTypeDevice:
		return "Device"
	default:
		return "Tag"
	}
}

// Device is a positioned IoT device. X, Y and Z are world coordinates.
type Device struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Z       float64    `json:"z"`
	Type    DeviceType `json:"type"`
	Quality float64    `json:"quality"`
	Zone    *string    `json:"zone"`
	Topic   string     `json:"topic,omitempty"`
}

// Position returns the device's planar world position.
func (d Device) Position() Point {
	return Point{X: d.X, Y: d.Y}
}

// Normalized returns a copy with non-finite coordinates replaced by 0 and an
// empty or unknown type replaced by DeviceTypeDevice.
func (d Device) Normalized() Device {
	d.X = finiteOrZero(d.X)
	d.Y = finiteOrZero(d.Y)
	d.Z = finiteOrZero(d.Z)
	d.Quality = finiteOrZero(d.Quality)
	if !d.Type.Valid() {
		d.Type = DeviceTypeDevice
	}
	if d.Name == "" {
		d.Name = d.Type.DefaultName()
	}
	if d.Zone != nil {
		zone := *d.Zone
		d.Zone = &zone
	}
	return d
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
