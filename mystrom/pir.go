package mystrom

import "context"

const pirPath = "api/v1/"

// Sensors is the combined reading of a PIR's sensors.
// A nil field was not reported.
type Sensors struct {
	Motion      *bool    `json:"motion"`
	Light       *float64 `json:"light"`
	Temperature *float64 `json:"temperature"` // °C, rounded to 2 decimal places
}

// Light is a reading of the PIR's light sensor.
// A nil field was not reported.
type Light struct {
	Intensity *float64 `json:"intensity"`
	Day       *bool    `json:"day"` // per the configured day/night thresholds
	Raw       struct {
		Visible  *float64 `json:"adc0"`
		Infrared *float64 `json:"adc1"`
	} `json:"raw"`
}

// Temperatures are the PIR's temperature readings in °C.
// Measured and Compensated are rounded to 2 decimal places,
// Compensation to 3; Raw holds the unrounded values.
// A nil field was not reported.
type Temperatures struct {
	Measured     *float64
	Compensated  *float64
	Compensation *float64
	Raw          map[string]interface{}
}

// PIR is a myStrom Motion Sensor.
//
// Each accessor method polls one endpoint and caches the result;
// the getters without a context return the cached value, nil if never polled.
type PIR struct {
	*Session

	settings    map[string]interface{}
	pirSettings map[string]interface{}
	actions     map[string]interface{}
	motion      *bool
	sensors     *Sensors
	light       *Light
	temps       *Temperatures
}

// NewPIR returns a client for the motion sensor at host.
func NewPIR(host string, opts ...Option) *PIR {
	return &PIR{Session: NewSession(host, opts...)}
}

func (p *PIR) getMap(ctx context.Context, path string) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := p.getObject(ctx, pirPath+path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetSettings polls the device settings.
func (p *PIR) GetSettings(ctx context.Context) (map[string]interface{}, error) {
	m, err := p.getMap(ctx, "settings")
	if err != nil {
		return nil, err
	}
	p.settings = m
	return m, nil
}

// GetPIRSettings polls the motion detector settings.
func (p *PIR) GetPIRSettings(ctx context.Context) (map[string]interface{}, error) {
	m, err := p.getMap(ctx, "settings/pir")
	if err != nil {
		return nil, err
	}
	p.pirSettings = m
	return m, nil
}

// GetActions polls the configured actions.
func (p *PIR) GetActions(ctx context.Context) (map[string]interface{}, error) {
	m, err := p.getMap(ctx, "action")
	if err != nil {
		return nil, err
	}
	p.actions = m
	return m, nil
}

// GetMotion polls the motion detector.
// ok is false if the device answered without a motion reading.
func (p *PIR) GetMotion(ctx context.Context) (motion, ok bool, err error) {
	var resp struct {
		Motion *bool `json:"motion"`
	}
	if err := p.getObject(ctx, pirPath+"motion", &resp); err != nil {
		return false, false, err
	}
	p.motion = resp.Motion
	motion, ok = optionalBool(resp.Motion)
	return motion, ok, nil
}

// GetSensors polls all sensors at once.
func (p *PIR) GetSensors(ctx context.Context) (*Sensors, error) {
	s := new(Sensors)
	if err := p.getObject(ctx, pirPath+"sensors", s); err != nil {
		return nil, err
	}
	if s.Temperature != nil {
		t := round(*s.Temperature, 2)
		s.Temperature = &t
	}
	p.sensors = s
	return s, nil
}

// GetLight polls the light sensor.
func (p *PIR) GetLight(ctx context.Context) (*Light, error) {
	l := new(Light)
	if err := p.getObject(ctx, pirPath+"light", l); err != nil {
		return nil, err
	}
	p.light = l
	return l, nil
}

// GetTemperatures polls the temperature endpoint,
// which lives at the device root rather than under the API prefix.
func (p *PIR) GetTemperatures(ctx context.Context) (*Temperatures, error) {
	var raw map[string]interface{}
	if err := p.getObject(ctx, "/temp", &raw); err != nil {
		return nil, err
	}
	t := &Temperatures{
		Measured:     roundedField(raw, "measured", 2),
		Compensated:  roundedField(raw, "compensated", 2),
		Compensation: roundedField(raw, "compensation", 3),
		Raw:          raw,
	}
	p.temps = t
	return t, nil
}

// Settings returns the result of the last GetSettings.
func (p *PIR) Settings() map[string]interface{} { return p.settings }

// PIRSettings returns the result of the last GetPIRSettings.
func (p *PIR) PIRSettings() map[string]interface{} { return p.pirSettings }

// Actions returns the result of the last GetActions.
func (p *PIR) Actions() map[string]interface{} { return p.actions }

// Sensors returns the result of the last GetSensors.
func (p *PIR) Sensors() *Sensors { return p.sensors }

// Light returns the result of the last GetLight.
func (p *PIR) Light() *Light { return p.light }

// Temperatures returns the result of the last GetTemperatures.
func (p *PIR) Temperatures() *Temperatures { return p.temps }

// Motion returns the last motion reading.
// ok is false if none has been polled, or the last poll had no reading.
func (p *PIR) Motion() (motion, ok bool) { return optionalBool(p.motion) }

func roundedField(m map[string]interface{}, key string, places int) *float64 {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	f = round(f, places)
	return &f
}
