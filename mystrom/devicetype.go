package mystrom

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// DeviceType is the numeric myStrom device type code.
// See https://api.mystrom.ch/#f37a4be7-0233-4d93-915e-c6f92656f129
type DeviceType int

const (
	// TypeUnknown is used when a device does not report its type,
	// or reports one not in the table. No device uses code 0.
	TypeUnknown DeviceType = 0

	TypeSwitchCHv1    DeviceType = 101
	TypeBulb          DeviceType = 102
	TypeButtonPlus    DeviceType = 103
	TypeButton        DeviceType = 104
	TypeLEDStrip      DeviceType = 105
	TypeSwitchCHv2    DeviceType = 106
	TypeSwitchEU      DeviceType = 107
	TypeMotionSensor  DeviceType = 110
	TypeModulo        DeviceType = 113
	TypeButtonPlus2nd DeviceType = 118
	TypeSwitchZero    DeviceType = 120
)

// UnknownTypeName is the display name of any type not in the table.
const UnknownTypeName = "Unknown"

var typeNames = map[DeviceType]string{
	TypeSwitchCHv1:    "Switch CH v1",
	TypeBulb:          "Bulb",
	TypeButtonPlus:    "Button+",
	TypeButton:        "Button",
	TypeLEDStrip:      "LED Strip",
	TypeSwitchCHv2:    "Switch CH v2",
	TypeSwitchEU:      "Switch EU",
	TypeMotionSensor:  "Motion Sensor",
	TypeModulo:        "modulo® STECCO / CUBO",
	TypeButtonPlus2nd: "Button Plus 2nd",
	TypeSwitchZero:    "Switch Zero",
}

// Three-letter codes used by some firmware in place of the numeric type.
var literalTypes = map[string]DeviceType{
	"WSW": TypeSwitchCHv1,
	"WRB": TypeBulb,
	"WBP": TypeButtonPlus,
	"WBS": TypeButton,
	"WRS": TypeLEDStrip,
	"WS2": TypeSwitchCHv2,
	"WSE": TypeSwitchEU,
	"WMS": TypeMotionSensor,
	"WLL": TypeModulo,
	"BP2": TypeButtonPlus2nd,
	"LCS": TypeSwitchZero,
}

func (t DeviceType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return UnknownTypeName
}

// Known reports whether t is in the device type table.
func (t DeviceType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// IsSwitch reports whether t is a relay switch/plug.
func (t DeviceType) IsSwitch() bool {
	switch t {
	case TypeSwitchCHv1, TypeSwitchCHv2, TypeSwitchEU, TypeSwitchZero:
		return true
	}
	return false
}

// LookupLiteral maps a three-letter type code such as "WSW" to its DeviceType.
func LookupLiteral(code string) (DeviceType, bool) {
	t, ok := literalTypes[code]
	return t, ok
}

// UnmarshalJSON accepts a number, a numeric string or a three-letter code.
// Numeric codes are kept even if not in the table; anything else
// decodes to TypeUnknown rather than failing,
// since firmware versions disagree on the format.
func (t *DeviceType) UnmarshalJSON(b []byte) error {
	*t = TypeUnknown
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			*t = DeviceType(v)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		*t = DeviceType(v)
	} else if lt, ok := LookupLiteral(s); ok {
		*t = lt
	}
	return nil
}
