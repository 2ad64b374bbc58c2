package mystrom

import (
	"context"
	"fmt"
	"net/url"
)

// ButtonActions are the URLs a WiFi Button calls for each gesture.
// An empty URL disables the gesture.
type ButtonActions struct {
	Single string `json:"single"`
	Double string `json:"double"`
	Long   string `json:"long"`
	Touch  string `json:"touch"`
}

func (a ButtonActions) form() string {
	return url.Values{
		"single": {a.Single},
		"double": {a.Double},
		"long":   {a.Long},
		"touch":  {a.Touch},
	}.Encode()
}

// HomeAssistantActions returns actions that report each gesture
// to the myStrom integration of a Home Assistant instance.
func HomeAssistantActions(hass string, port int, id string) ButtonActions {
	action := func(gesture string) string {
		return fmt.Sprintf("get://%s:%d/api/mystrom?%s=%s", hass, port, gesture, id)
	}
	return ButtonActions{
		Single: action("single"),
		Double: action("double"),
		Long:   action("long"),
		Touch:  action("touch"),
	}
}

// Button is a myStrom WiFi Button (or Button+). It is configured through
// the same per-MAC device endpoint as the bulb.
type Button struct {
	*Session
	mac string
}

// NewButton returns a client for the button at host.
func NewButton(host, mac string, opts ...Option) *Button {
	return &Button{Session: NewSession(host, opts...), mac: NormalizeMAC(mac)}
}

// MAC returns the normalized MAC address the button is addressed by.
func (b *Button) MAC() string { return b.mac }

// Config returns the device configuration as reported by the button.
func (b *Button) Config(ctx context.Context) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := b.getObject(ctx, devicePath+b.mac+"/", &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetActions writes the gesture URLs.
func (b *Button) SetActions(ctx context.Context, a ButtonActions) error {
	_, err := b.do(ctx, request{
		method: "POST",
		path:   devicePath + b.mac + "/",
		form:   a.form(),
	})
	return err
}

// ResetActions clears all gesture URLs.
func (b *Button) ResetActions(ctx context.Context) error {
	return b.SetActions(ctx, ButtonActions{})
}
