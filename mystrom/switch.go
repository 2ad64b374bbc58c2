package mystrom

import (
	"context"
	"math"
	"net/url"
)

// SwitchReport is the body of a switch's report endpoint.
// A nil field was not reported by the firmware.
type SwitchReport struct {
	Relay           *bool    `json:"relay"`
	Power           *float64 `json:"power"`             // W
	Ws              *float64 `json:"Ws"`                // average W since the last report
	BootID          *string  `json:"boot_id"`
	EnergySinceBoot *float64 `json:"energy_since_boot"` // Ws
	TimeSinceBoot   *float64 `json:"time_since_boot"`   // s
	Temperature     *float64 `json:"temperature"`       // °C, absent on older firmware
}

// SwitchState is a snapshot of a switch taken by Refresh.
type SwitchState struct {
	SwitchReport
	Firmware string
	MAC      string
	Type     DeviceType
}

// Switch is a myStrom WiFi Switch (CH v1, CH v2, EU).
type Switch struct {
	*Session
	state *SwitchState
}

// NewSwitch returns a client for the switch at host.
// Use WithToken for switches that have REST API authentication enabled.
func NewSwitch(host string, opts ...Option) *Switch {
	return &Switch{Session: NewSession(host, opts...)}
}

// TurnOn switches the relay on and refreshes the cached state.
func (sw *Switch) TurnOn(ctx context.Context) error {
	return sw.setRelay(ctx, "1")
}

// TurnOff switches the relay off and refreshes the cached state.
func (sw *Switch) TurnOff(ctx context.Context) error {
	return sw.setRelay(ctx, "0")
}

func (sw *Switch) setRelay(ctx context.Context, state string) error {
	if _, err := sw.do(ctx, request{path: "relay", query: url.Values{"state": {state}}}); err != nil {
		return err
	}
	_, err := sw.Refresh(ctx)
	return err
}

// Toggle flips the relay and refreshes the cached state.
func (sw *Switch) Toggle(ctx context.Context) error {
	if _, err := sw.do(ctx, request{path: "toggle"}); err != nil {
		return err
	}
	_, err := sw.Refresh(ctx)
	return err
}

// Refresh polls the report and info endpoints.
// The cached state is only replaced if both succeed.
func (sw *Switch) Refresh(ctx context.Context) (*SwitchState, error) {
	var st SwitchState
	if err := sw.getObject(ctx, "report", &st.SwitchReport); err != nil {
		return nil, err
	}
	info, err := sw.Info(ctx)
	if err != nil {
		return nil, err
	}
	st.Firmware = info.Version
	st.MAC = info.MAC
	st.Type = info.Type

	sw.state = &st
	return &st, nil
}

// State returns the last snapshot, or nil if Refresh has not succeeded yet.
func (sw *Switch) State() *SwitchState { return sw.state }

func (sw *Switch) report() SwitchReport {
	if sw.state == nil {
		return SwitchReport{}
	}
	return sw.state.SwitchReport
}

// Relay reports whether the relay was on at the last refresh.
// ok is false if there is no refresh yet or the report had no relay state.
func (sw *Switch) Relay() (on, ok bool) {
	return optionalBool(sw.report().Relay)
}

// Consumption returns the power draw in W, to 1 decimal place.
func (sw *Switch) Consumption() (float64, bool) {
	return rounded(sw.report().Power, 1)
}

// ConsumedWs returns the average power since the previous report, to 1 decimal place.
func (sw *Switch) ConsumedWs() (float64, bool) {
	return rounded(sw.report().Ws, 1)
}

// EnergySinceBoot returns the energy consumed since boot in Ws, to 2 decimal places.
func (sw *Switch) EnergySinceBoot() (float64, bool) {
	return rounded(sw.report().EnergySinceBoot, 2)
}

// TimeSinceBoot returns the seconds since the device booted.
func (sw *Switch) TimeSinceBoot() (float64, bool) {
	return optional(sw.report().TimeSinceBoot)
}

// BootID returns the identifier of the current boot.
func (sw *Switch) BootID() (string, bool) {
	if b := sw.report().BootID; b != nil {
		return *b, true
	}
	return "", false
}

// Temperature returns the compensated temperature in °C.
func (sw *Switch) Temperature() (float64, bool) {
	return optional(sw.report().Temperature)
}

// Firmware returns the firmware version, or "" if unknown.
func (sw *Switch) Firmware() string {
	if sw.state == nil {
		return ""
	}
	return sw.state.Firmware
}

// MAC returns the MAC address reported by the device, or "" if unknown.
func (sw *Switch) MAC() string {
	if sw.state == nil {
		return ""
	}
	return sw.state.MAC
}

// Type returns the device type, TypeUnknown if the firmware did not report one.
func (sw *Switch) Type() DeviceType {
	if sw.state == nil {
		return TypeUnknown
	}
	return sw.state.Type
}

// FullTemperature returns the temp endpoint body as-is:
// measured, compensated and compensation values.
// It does not touch the cached state.
func (sw *Switch) FullTemperature(ctx context.Context) (map[string]interface{}, error) {
	resp, err := sw.do(ctx, request{path: "temp"})
	if err != nil {
		return nil, err
	}
	m, ok := resp.object()
	if !ok {
		return nil, &UnsupportedError{Op: "temperature"}
	}
	return m, nil
}

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func optionalBool(v *bool) (bool, bool) {
	if v == nil {
		return false, false
	}
	return *v, true
}

func rounded(v *float64, places int) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return round(*v, places), true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
