package mystrom

import (
	"context"
	"net/url"
)

// SwitchZeroState is a snapshot of a Switch Zero.
// A nil Relay was not reported.
type SwitchZeroState struct {
	Relay    *bool
	Firmware string
	MAC      string
}

// SwitchZero is a myStrom Switch Zero. It has no power metering.
type SwitchZero struct {
	*Session
	state *SwitchZeroState
}

// NewSwitchZero returns a client for the Switch Zero at host.
func NewSwitchZero(host string, opts ...Option) *SwitchZero {
	return &SwitchZero{Session: NewSession(host, opts...)}
}

// TurnOn closes the relay and refreshes the state.
func (z *SwitchZero) TurnOn(ctx context.Context) error { return z.setRelay(ctx, "1") }

// TurnOff opens the relay and refreshes the state.
func (z *SwitchZero) TurnOff(ctx context.Context) error { return z.setRelay(ctx, "0") }

func (z *SwitchZero) setRelay(ctx context.Context, state string) error {
	if _, err := z.do(ctx, request{path: "relay", query: url.Values{"state": {state}}}); err != nil {
		return err
	}
	_, err := z.Refresh(ctx)
	return err
}

// Toggle flips the relay and refreshes the state.
func (z *SwitchZero) Toggle(ctx context.Context) error {
	if _, err := z.do(ctx, request{path: "toggle"}); err != nil {
		return err
	}
	_, err := z.Refresh(ctx)
	return err
}

// Refresh polls the relay state and the firmware info.
// The info endpoint is always taken from the device root,
// even when the Session has a base path.
func (z *SwitchZero) Refresh(ctx context.Context) (*SwitchZeroState, error) {
	var report struct {
		Relay *bool `json:"relay"`
	}
	if err := z.getObject(ctx, "report", &report); err != nil {
		return nil, err
	}
	var info Info
	if err := z.getObject(ctx, "/"+infoPath, &info); err != nil {
		return nil, err
	}
	st := &SwitchZeroState{
		Relay:    report.Relay,
		Firmware: info.Version,
		MAC:      info.MAC,
	}
	z.state = st
	return st, nil
}

// State returns the last snapshot, or nil if Refresh has not succeeded yet.
func (z *SwitchZero) State() *SwitchZeroState { return z.state }

// Relay reports whether the relay was on at the last refresh.
// ok is false if there is no refresh yet or the report had no relay state.
func (z *SwitchZero) Relay() (on, ok bool) {
	if z.state == nil {
		return false, false
	}
	return optionalBool(z.state.Relay)
}

// Firmware returns the firmware version seen at the last refresh.
func (z *SwitchZero) Firmware() string {
	if z.state == nil {
		return ""
	}
	return z.state.Firmware
}

// MAC returns the device MAC address seen at the last refresh.
func (z *SwitchZero) MAC() string {
	if z.state == nil {
		return ""
	}
	return z.state.MAC
}
