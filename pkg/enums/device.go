package enums

import "fmt"

// DeviceType maps to the device_type enum in Postgres.
type DeviceType string

const (
	DeviceTypeWeb     DeviceType = "web"
	DeviceTypeAndroid DeviceType = "android"
	DeviceTypeIOS     DeviceType = "ios"
)

var validDeviceTypes = []DeviceType{
	DeviceTypeWeb,
	DeviceTypeAndroid,
	DeviceTypeIOS,
}

// IsValid reports whether the device type is recognized.
func (d DeviceType) IsValid() bool {
	for _, candidate := range validDeviceTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeviceType converts a raw string into a DeviceType.
func ParseDeviceType(value string) (DeviceType, error) {
	for _, candidate := range validDeviceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device type %q", value)
}
