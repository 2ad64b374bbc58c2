package mystrom

import (
	"encoding/json"
	"testing"
)

func TestDeviceTypeString(t *testing.T) {
	for code := -1; code < 300; code++ {
		dt := DeviceType(code)
		name := dt.String()
		if name == "" {
			t.Fatalf("DeviceType(%d).String() is empty", code)
		}
		if dt.Known() != (name != UnknownTypeName) {
			t.Errorf("DeviceType(%d): Known() = %v but String() = %q", code, dt.Known(), name)
		}
	}
	if TypeSwitchZero.String() != "Switch Zero" || TypeModulo.String() != "modulo® STECCO / CUBO" {
		t.Errorf("got %q, %q", TypeSwitchZero, TypeModulo)
	}
	if TypeUnknown.Known() {
		t.Error("TypeUnknown is in the table")
	}
}

func TestLookupLiteral(t *testing.T) {
	for code, want := range map[string]DeviceType{"WSW": TypeSwitchCHv1, "WRB": TypeBulb, "LCS": TypeSwitchZero, "BP2": TypeButtonPlus2nd} {
		if got, ok := LookupLiteral(code); !ok || got != want {
			t.Errorf("LookupLiteral(%q) = %v, %v; want %v", code, got, ok, want)
		}
	}
	if _, ok := LookupLiteral("XYZ"); ok {
		t.Error("LookupLiteral(XYZ) succeeded")
	}
	for code, dt := range literalTypes {
		if !dt.Known() {
			t.Errorf("literal %q maps to %d, which has no name", code, dt)
		}
	}
}

func TestIsSwitch(t *testing.T) {
	for dt := range typeNames {
		want := dt == TypeSwitchCHv1 || dt == TypeSwitchCHv2 || dt == TypeSwitchEU || dt == TypeSwitchZero
		if dt.IsSwitch() != want {
			t.Errorf("%v.IsSwitch() = %v", dt, dt.IsSwitch())
		}
	}
}

func TestDeviceTypeUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want DeviceType
	}{
		{`107`, TypeSwitchEU},
		{`"106"`, TypeSwitchCHv2},
		{`"WSE"`, TypeSwitchEU},
		{`999`, DeviceType(999)},
		{`null`, TypeUnknown},
		{`"bogus"`, TypeUnknown},
		{`1.5`, TypeUnknown},
		{`true`, TypeUnknown},
	}
	for _, tc := range tests {
		var got struct {
			Type DeviceType `json:"type"`
		}
		got.Type = TypeBulb
		if err := json.Unmarshal([]byte(`{"type":`+tc.in+`}`), &got); err != nil {
			t.Errorf("unmarshal %s: %v", tc.in, err)
			continue
		}
		if got.Type != tc.want {
			t.Errorf("unmarshal %s = %d, want %d", tc.in, got.Type, tc.want)
		}
	}
}
