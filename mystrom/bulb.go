package mystrom

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const devicePath = "api/v1/device/"

// BulbState is a bulb's entry in the device report.
type BulbState struct {
	On       *bool    `json:"on"`
	Color    string   `json:"color"` // "H;S;V" in hsv mode, 8 hex digits in rgb mode
	Mode     string   `json:"mode"`  // "hsv" or "rgb"
	Ramp     *float64 `json:"ramp"`  // ms
	Power    *float64 `json:"power"` // W
	Firmware string   `json:"fw_version"`
	Type     string   `json:"type"` // e.g. "rgblamp", "strip"
}

// Brightness returns the V component of an HSV color.
func (st *BulbState) Brightness() (int, bool) {
	parts := strings.Split(st.Color, ";")
	if len(parts) < 3 {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return 0, false
	}
	return v, true
}

// HSV is a bulb color. Hue is in [0, 360), Saturation and Value in [0, 100].
type HSV struct {
	Hue, Saturation, Value int
}

func (c HSV) valid() bool {
	return c.Hue >= 0 && c.Hue < 360 &&
		c.Saturation >= 0 && c.Saturation <= 100 &&
		c.Value >= 0 && c.Value <= 100
}

// Bulb is a myStrom WiFi Bulb or LED strip.
//
// Unlike Switch, the mutators do not refresh the cached state;
// call Refresh to read back what the bulb is doing.
type Bulb struct {
	*Session
	mac   string
	state *BulbState

	sleep func(context.Context, time.Duration) error
}

// NewBulb returns a client for the bulb at host.
// mac may be given with or without separators.
func NewBulb(host, mac string, opts ...Option) *Bulb {
	return &Bulb{
		Session: NewSession(host, opts...),
		mac:     NormalizeMAC(mac),
		sleep:   sleepContext,
	}
}

// NormalizeMAC converts "5c:cf:7f:a0:af:b0" to the "5CCF7FA0AFB0" form
// the bulb API uses as a key.
func NormalizeMAC(mac string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(mac))
}

// MAC returns the normalized MAC address of the bulb.
func (b *Bulb) MAC() string { return b.mac }

// Refresh polls the bulb's device report.
func (b *Bulb) Refresh(ctx context.Context) (*BulbState, error) {
	var report map[string]json.RawMessage
	if err := b.getObject(ctx, devicePath+b.mac+"/", &report); err != nil {
		return nil, err
	}
	raw, ok := report[b.mac]
	if !ok {
		return nil, fmt.Errorf("bulb %s: %w", b.mac, ErrNotInReport)
	}
	st := new(BulbState)
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decoding bulb report: %w", err)
	}
	b.state = st
	return st, nil
}

// State returns the last snapshot, or nil if Refresh has not succeeded yet.
func (b *Bulb) State() *BulbState { return b.state }

// On reports whether the bulb was on at the last refresh. Unknown reads as off.
func (b *Bulb) On() bool {
	return b.state != nil && b.state.On != nil && *b.state.On
}

// Color returns the color string and its mode.
func (b *Bulb) Color() (color, mode string) {
	if b.state == nil {
		return "", ""
	}
	return b.state.Color, b.state.Mode
}

// Power returns the power draw in W.
func (b *Bulb) Power() (float64, bool) {
	if b.state == nil {
		return 0, false
	}
	return optional(b.state.Power)
}

// TransitionTime returns the ramp time.
func (b *Bulb) TransitionTime() (time.Duration, bool) {
	if b.state == nil || b.state.Ramp == nil {
		return 0, false
	}
	return time.Duration(*b.state.Ramp * float64(time.Millisecond)), true
}

// Firmware returns the firmware version seen at the last refresh.
func (b *Bulb) Firmware() string {
	if b.state == nil {
		return ""
	}
	return b.state.Firmware
}

// BulbType returns the bulb-type code reported by the firmware, e.g. "rgblamp".
func (b *Bulb) BulbType() string {
	if b.state == nil {
		return ""
	}
	return b.state.Type
}

func (b *Bulb) post(ctx context.Context, req request) error {
	req.method = "POST"
	req.path = devicePath + b.mac
	_, err := b.do(ctx, req)
	return err
}

// SetOn turns the bulb on with its previous color.
func (b *Bulb) SetOn(ctx context.Context) error {
	return b.post(ctx, request{form: url.Values{"action": {"on"}}.Encode()})
}

// SetOff turns the bulb off.
func (b *Bulb) SetOff(ctx context.Context) error {
	return b.post(ctx, request{form: url.Values{"action": {"off"}}.Encode()})
}

// SetColorHex turns the bulb on with an 8 hex digit color, white channel first:
//
//	white: FF000000
//	red:   00FF0000
//	green: 0000FF00
//	blue:  000000FF
func (b *Bulb) SetColorHex(ctx context.Context, value string) error {
	if len(value) != 8 {
		return fmt.Errorf("%w: %q is not 8 hex digits", ErrInvalidColor, value)
	}
	if _, err := hex.DecodeString(value); err != nil {
		return fmt.Errorf("%w: %q is not 8 hex digits", ErrInvalidColor, value)
	}
	return b.post(ctx, request{json: map[string]string{
		"action": "on",
		"color":  value,
	}})
}

// SetColorHSV turns the bulb on with the given color.
func (b *Bulb) SetColorHSV(ctx context.Context, hue, saturation, value int) error {
	c := HSV{hue, saturation, value}
	if !c.valid() {
		return fmt.Errorf("%w: %+v out of range", ErrInvalidColor, c)
	}
	return b.setColor(ctx, fmt.Sprintf("%d;%d;%d", hue, saturation, value))
}

// setColor sends a raw color command. The firmware only understands
// the semicolons unescaped, so this does not go through url.Values.
func (b *Bulb) setColor(ctx context.Context, color string) error {
	return b.post(ctx, request{form: "action=on&color=" + color})
}

// SetWhite turns the bulb on in full white.
func (b *Bulb) SetWhite(ctx context.Context) error {
	return b.SetColorHSV(ctx, 0, 0, 100)
}

// SetTransitionTime sets the ramp time in milliseconds, rounded to the nearest integer.
func (b *Bulb) SetTransitionTime(ctx context.Context, ms float64) error {
	ramp := strconv.FormatInt(int64(math.Round(ms)), 10)
	return b.post(ctx, request{form: url.Values{"ramp": {ramp}}.Encode()})
}

const rainbowSteps = 359

// SetRainbow cycles the hue through the color wheel over d.
// It blocks until done; cancel ctx to stop early.
func (b *Bulb) SetRainbow(ctx context.Context, d time.Duration) error {
	step := d / rainbowSteps
	for hue := 0; hue < rainbowSteps; hue++ {
		if err := b.SetColorHSV(ctx, hue, 100, 100); err != nil {
			return err
		}
		if err := b.sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

const sunriseSteps = 100

// SetSunrise ramps the brightness up in 100 steps spread over d.
func (b *Bulb) SetSunrise(ctx context.Context, d time.Duration) error {
	if err := b.SetTransitionTime(ctx, d.Seconds()/sunriseSteps); err != nil {
		return err
	}
	step := d / sunriseSteps
	for i := 0; i < sunriseSteps; i++ {
		if err := b.setColor(ctx, fmt.Sprintf("3;%d", i)); err != nil {
			return err
		}
		if err := b.sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// SetFlashing alternates between two colors once per second for d.
func (b *Bulb) SetFlashing(ctx context.Context, d time.Duration, c1, c2 HSV) error {
	if err := b.SetTransitionTime(ctx, 100); err != nil {
		return err
	}
	cycles := int(d.Seconds() / 2)
	for i := 0; i < cycles; i++ {
		for _, c := range []HSV{c1, c2} {
			if err := b.SetColorHSV(ctx, c.Hue, c.Saturation, c.Value); err != nil {
				return err
			}
			if err := b.sleep(ctx, time.Second); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
