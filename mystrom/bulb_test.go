package mystrom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

const bulbMAC = "5CCF7FA0AFB0"

func newTestBulb(t *testing.T) (*Bulb, *fakeDevice, *[]time.Duration) {
	t.Helper()
	dev := newFakeDevice(t, map[string]http.HandlerFunc{
		"/api/v1/device/" + bulbMAC + "/": jsonReply(map[string]interface{}{
			bulbMAC: map[string]interface{}{
				"type":       "rgblamp",
				"battery":    false,
				"reachable":  true,
				"on":         true,
				"color":      "120;50;75",
				"mode":       "hsv",
				"ramp":       300,
				"power":      5.15,
				"fw_version": "2.58.0",
			},
		}),
		"/api/v1/device/" + bulbMAC: jsonReply(map[string]interface{}{}),
	})
	b := NewBulb(dev.URL, "5c:cf:7f:a0:af:b0")
	t.Cleanup(func() { b.Close() })
	var sleeps []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return b, dev, &sleeps
}

func TestBulbRefresh(t *testing.T) {
	b, _, _ := newTestBulb(t)
	if b.MAC() != bulbMAC {
		t.Errorf("MAC() = %q, want %q", b.MAC(), bulbMAC)
	}
	if _, err := b.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !b.On() {
		t.Error("On() = false")
	}
	if c, m := b.Color(); c != "120;50;75" || m != "hsv" {
		t.Errorf("Color() = %q, %q", c, m)
	}
	if v, ok := b.State().Brightness(); !ok || v != 75 {
		t.Errorf("Brightness() = %d, %v; want 75", v, ok)
	}
	if d, ok := b.TransitionTime(); !ok || d != 300*time.Millisecond {
		t.Errorf("TransitionTime() = %v, %v", d, ok)
	}
	if p, ok := b.Power(); !ok || p != 5.15 {
		t.Errorf("Power() = %v, %v", p, ok)
	}
	if b.Firmware() != "2.58.0" || b.BulbType() != "rgblamp" {
		t.Errorf("Firmware, BulbType = %q, %q", b.Firmware(), b.BulbType())
	}
}

func TestBulbRefreshWrongMAC(t *testing.T) {
	dev := newFakeDevice(t, map[string]http.HandlerFunc{
		"/api/v1/device/AABBCCDDEEFF/": jsonReply(map[string]interface{}{
			bulbMAC: map[string]interface{}{"on": true},
		}),
	})
	b := NewBulb(dev.URL, "AABBCCDDEEFF")
	defer b.Close()
	_, err := b.Refresh(context.Background())
	if !errors.Is(err, ErrNotInReport) {
		t.Errorf("got %v, want ErrNotInReport", err)
	}
	if b.State() != nil {
		t.Error("state set from another device's entry")
	}
}

func TestBulbCommands(t *testing.T) {
	b, dev, _ := newTestBulb(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		op          func() error
		body        string
		contentType string
	}{
		{"SetOn", func() error { return b.SetOn(ctx) }, "action=on", "application/x-www-form-urlencoded"},
		{"SetOff", func() error { return b.SetOff(ctx) }, "action=off", "application/x-www-form-urlencoded"},
		{"SetColorHSV", func() error { return b.SetColorHSV(ctx, 50, 100, 100) }, "action=on&color=50;100;100", "application/x-www-form-urlencoded"},
		{"SetWhite", func() error { return b.SetWhite(ctx) }, "action=on&color=0;0;100", "application/x-www-form-urlencoded"},
		{"SetColorHex", func() error { return b.SetColorHex(ctx, "000000FF") }, `{"action":"on","color":"000000FF"}`, "application/json"},
		{"SetTransitionTime", func() error { return b.SetTransitionTime(ctx, 1999.5) }, "ramp=2000", "application/x-www-form-urlencoded"},
	}
	for _, tc := range tests {
		dev.reset()
		if err := tc.op(); err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		reqs := dev.requests()
		if len(reqs) != 1 {
			t.Errorf("%s: made %d requests, want 1 (no refresh)", tc.name, len(reqs))
			continue
		}
		r := reqs[0]
		if r.Method != "POST" || r.Path != "/api/v1/device/"+bulbMAC {
			t.Errorf("%s: sent %s %s", tc.name, r.Method, r.Path)
		}
		if r.Body != tc.body {
			t.Errorf("%s: body = %q, want %q", tc.name, r.Body, tc.body)
		}
		if r.ContentType != tc.contentType {
			t.Errorf("%s: Content-Type = %q, want %q", tc.name, r.ContentType, tc.contentType)
		}
	}
}

func TestBulbWhiteIsHSVWhite(t *testing.T) {
	b, dev, _ := newTestBulb(t)
	ctx := context.Background()
	if err := b.SetColorHSV(ctx, 0, 0, 100); err != nil {
		t.Fatal(err)
	}
	if err := b.SetWhite(ctx); err != nil {
		t.Fatal(err)
	}
	reqs := dev.requests()
	if reqs[0] != reqs[1] {
		t.Errorf("SetWhite sent %+v, SetColorHSV(0, 0, 100) sent %+v", reqs[1], reqs[0])
	}
}

func TestBulbInvalidColors(t *testing.T) {
	b, dev, _ := newTestBulb(t)
	ctx := context.Background()

	for _, hex := range []string{"", "FF", "FF0000000", "GG000000"} {
		if err := b.SetColorHex(ctx, hex); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("SetColorHex(%q) = %v, want ErrInvalidColor", hex, err)
		}
	}
	for _, c := range []HSV{{360, 0, 0}, {-1, 0, 0}, {0, 101, 0}, {0, 0, -5}} {
		if err := b.SetColorHSV(ctx, c.Hue, c.Saturation, c.Value); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("SetColorHSV(%v) = %v, want ErrInvalidColor", c, err)
		}
	}
	if n := len(dev.requests()); n != 0 {
		t.Errorf("invalid colors caused %d requests", n)
	}
}

func TestBulbSunrise(t *testing.T) {
	b, dev, sleeps := newTestBulb(t)
	if err := b.SetSunrise(context.Background(), 60*time.Second); err != nil {
		t.Fatal(err)
	}
	reqs := dev.requests()
	if len(reqs) != 101 {
		t.Fatalf("made %d requests, want 1 ramp + 100 steps", len(reqs))
	}
	if reqs[0].Body != "ramp=1" {
		t.Errorf("ramp request body = %q, want ramp=1 (0.6 rounded)", reqs[0].Body)
	}
	for i, r := range reqs[1:] {
		if want := fmt.Sprintf("action=on&color=3;%d", i); r.Body != want {
			t.Errorf("step %d: body = %q, want %q", i, r.Body, want)
		}
	}
	if len(*sleeps) != 100 {
		t.Fatalf("slept %d times, want 100", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != 600*time.Millisecond {
			t.Fatalf("slept %v between steps, want 600ms", d)
		}
	}
}

func TestBulbRainbow(t *testing.T) {
	b, dev, sleeps := newTestBulb(t)
	if err := b.SetRainbow(context.Background(), 359*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	reqs := dev.requests()
	if len(reqs) != 359 {
		t.Fatalf("made %d requests, want 359", len(reqs))
	}
	if reqs[0].Body != "action=on&color=0;100;100" || reqs[358].Body != "action=on&color=358;100;100" {
		t.Errorf("first and last steps = %q, %q", reqs[0].Body, reqs[358].Body)
	}
	if (*sleeps)[0] != time.Millisecond {
		t.Errorf("step delay = %v, want 1ms", (*sleeps)[0])
	}
}

func TestBulbRainbowCancel(t *testing.T) {
	b, dev, _ := newTestBulb(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps := 0
	b.sleep = func(ctx context.Context, d time.Duration) error {
		steps++
		if steps == 5 {
			cancel()
		}
		return ctx.Err()
	}
	err := b.SetRainbow(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if n := len(dev.requests()); n != 5 {
		t.Errorf("made %d requests, want 5 before cancellation", n)
	}
}

func TestBulbFlashing(t *testing.T) {
	b, dev, sleeps := newTestBulb(t)
	a, c := HSV{100, 50, 30}, HSV{200, 0, 71}
	if err := b.SetFlashing(context.Background(), 5*time.Second, a, c); err != nil {
		t.Fatal(err)
	}
	var bodies []string
	for _, r := range dev.requests() {
		bodies = append(bodies, r.Body)
	}
	want := []string{
		"ramp=100",
		"action=on&color=100;50;30",
		"action=on&color=200;0;71",
		"action=on&color=100;50;30",
		"action=on&color=200;0;71",
	}
	if fmt.Sprint(bodies) != fmt.Sprint(want) {
		t.Errorf("requests = %q, want %q", bodies, want)
	}
	if len(*sleeps) != 4 || (*sleeps)[0] != time.Second {
		t.Errorf("sleeps = %v, want 4 x 1s", *sleeps)
	}
}

func TestBulbAnimationAbortsOnError(t *testing.T) {
	b, dev, _ := newTestBulb(t)
	var n int32
	dev.handle("/api/v1/device/"+bulbMAC, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 4 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}
	})
	err := b.SetSunrise(context.Background(), time.Second)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("got %v, want ProtocolError 503", err)
	}
	if got := atomic.LoadInt32(&n); got != 4 {
		t.Errorf("sent %d requests, want the sequence to stop at the failing one", got)
	}
}
