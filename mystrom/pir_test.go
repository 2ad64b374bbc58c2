package mystrom

import (
	"context"
	"net/http"
	"testing"
)

func TestPIR(t *testing.T) {
	dev := newFakeDevice(t, map[string]http.HandlerFunc{
		"/api/v1/settings":     jsonReply(map[string]interface{}{"rest": false, "panel": true}),
		"/api/v1/settings/pir": jsonReply(map[string]interface{}{"backoff_time": 10, "sensitivity": 2}),
		"/api/v1/action":       jsonReply(map[string]interface{}{"pir": map[string]interface{}{}}),
		"/api/v1/motion":       jsonReply(map[string]interface{}{"motion": true}),
		"/api/v1/sensors":      jsonReply(map[string]interface{}{"motion": false, "light": 21, "temperature": 23.4567}),
		"/api/v1/light": jsonReply(map[string]interface{}{
			"intensity": 120,
			"day":       true,
			"raw":       map[string]interface{}{"adc0": 300, "adc1": 45},
		}),
		"/temp": jsonReply(map[string]interface{}{"measured": 26.123, "compensated": 21.6789, "compensation": 4.4441}),
	})
	p := NewPIR(dev.URL)
	defer p.Close()
	ctx := context.Background()

	if p.Sensors() != nil || p.Light() != nil || p.Temperatures() != nil {
		t.Fatal("PIR has readings before polling")
	}
	if _, ok := p.Motion(); ok {
		t.Fatal("Motion reported before polling")
	}

	if m, err := p.GetSettings(ctx); err != nil || m["panel"] != true {
		t.Errorf("GetSettings() = %v, %v", m, err)
	}
	if m, err := p.GetPIRSettings(ctx); err != nil || m["sensitivity"] != 2.0 {
		t.Errorf("GetPIRSettings() = %v, %v", m, err)
	}
	if _, err := p.GetActions(ctx); err != nil {
		t.Errorf("GetActions: %v", err)
	}
	if p.Settings()["rest"] != false || p.PIRSettings()["backoff_time"] != 10.0 || p.Actions() == nil {
		t.Error("settings were not cached")
	}

	if m, ok, err := p.GetMotion(ctx); err != nil || !m || !ok {
		t.Errorf("GetMotion() = %v, %v, %v", m, ok, err)
	}
	if m, ok := p.Motion(); !m || !ok {
		t.Errorf("Motion() = %v, %v", m, ok)
	}

	s, err := p.GetSensors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion == nil || *s.Motion || s.Light == nil || *s.Light != 21 || s.Temperature == nil || *s.Temperature != 23.46 {
		t.Errorf("GetSensors() = %+v", s)
	}

	l, err := p.GetLight(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if l.Intensity == nil || *l.Intensity != 120 || l.Day == nil || !*l.Day {
		t.Errorf("GetLight() = %+v", l)
	}
	if l.Raw.Visible == nil || *l.Raw.Visible != 300 || l.Raw.Infrared == nil || *l.Raw.Infrared != 45 {
		t.Errorf("GetLight() raw = %+v", l.Raw)
	}

	temps, err := p.GetTemperatures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *temps.Measured != 26.12 || *temps.Compensated != 21.68 || *temps.Compensation != 4.444 {
		t.Errorf("GetTemperatures() = %v, %v, %v", *temps.Measured, *temps.Compensated, *temps.Compensation)
	}
	if temps.Raw["compensated"] != 21.6789 {
		t.Errorf("raw compensated = %v, want 21.6789", temps.Raw["compensated"])
	}
	if p.Temperatures() != temps || p.Light() != l || p.Sensors() != s {
		t.Error("readings were not cached")
	}
}

func TestPIRMissingReadings(t *testing.T) {
	dev := newFakeDevice(t, map[string]http.HandlerFunc{
		"/api/v1/sensors": jsonReply(map[string]interface{}{"motion": true}),
		"/temp":           jsonReply(map[string]interface{}{"measured": 20}),
	})
	p := NewPIR(dev.URL)
	defer p.Close()
	ctx := context.Background()

	s, err := p.GetSensors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion == nil || !*s.Motion || s.Light != nil || s.Temperature != nil {
		t.Errorf("GetSensors() = %+v, want only motion", s)
	}
	temps, err := p.GetTemperatures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if temps.Measured == nil || temps.Compensated != nil || temps.Compensation != nil {
		t.Errorf("GetTemperatures() = %+v, want only measured", temps)
	}

	if _, err := p.GetLight(ctx); err == nil {
		t.Error("GetLight succeeded on a device without a light endpoint")
	}
	if p.Light() != nil {
		t.Error("failed poll cached a light reading")
	}
}

func TestPIREmptyReadings(t *testing.T) {
	dev := newFakeDevice(t, map[string]http.HandlerFunc{
		"/api/v1/light":   jsonReply(map[string]interface{}{}),
		"/api/v1/motion":  jsonReply(map[string]interface{}{}),
		"/api/v1/sensors": jsonReply(map[string]interface{}{}),
	})
	p := NewPIR(dev.URL)
	defer p.Close()
	ctx := context.Background()

	l, err := p.GetLight(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if l.Intensity != nil || l.Day != nil || l.Raw.Visible != nil || l.Raw.Infrared != nil {
		t.Errorf("GetLight() on an empty body = %+v, want every field unknown", l)
	}
	if _, ok, err := p.GetMotion(ctx); err != nil || ok {
		t.Errorf("GetMotion() on an empty body: ok=%v, err=%v; want unknown", ok, err)
	}
	if _, ok := p.Motion(); ok {
		t.Error("Motion() reports a reading the device did not send")
	}
	s, err := p.GetSensors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Motion != nil {
		t.Errorf("Sensors.Motion = %v, want nil", *s.Motion)
	}
}
