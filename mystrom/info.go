package mystrom

import (
	"context"
	"errors"
	"fmt"
)

const (
	infoPath       = "api/v1/info"
	legacyInfoPath = "info.json"
)

// Info is a device's self-description.
// Fields the firmware does not report are left empty; Type is TypeUnknown.
type Info struct {
	Version   string     `json:"version"`
	MAC       string     `json:"mac"`
	Type      DeviceType `json:"type"`
	Name      string     `json:"name,omitempty"`
	SSID      string     `json:"ssid"`
	IP        string     `json:"ip"`
	Mask      string     `json:"mask"`
	Gateway   string     `json:"gw"`
	DNS       string     `json:"dns"`
	Static    bool       `json:"static"`
	Connected bool       `json:"connected"`
}

// TypeName returns the display name of the device type.
func (i *Info) TypeName() string { return i.Type.String() }

var errNotObject = errors.New("response is not a JSON object")

// Info fetches the device description from the current endpoint,
// falling back to the legacy one for older firmware.
// Only an answer from the device that rules out the current endpoint
// triggers the fallback; timeouts and cancellation are returned as-is.
func (s *Session) Info(ctx context.Context) (*Info, error) {
	info, err := s.infoAt(ctx, infoPath)
	if err == nil {
		return info, nil
	}
	if !legacyFallback(err) {
		return nil, err
	}
	s.log.Debug().Err(err).Msg("info endpoint unusable, trying legacy path")
	info, lerr := s.infoAt(ctx, legacyInfoPath)
	if lerr == nil {
		return info, nil
	}
	return nil, &ConnectionError{Host: s.Host(), Reason: "device info unavailable", Err: lerr}
}

func (s *Session) infoAt(ctx context.Context, path string) (*Info, error) {
	resp, err := s.do(ctx, request{path: path})
	if err != nil {
		return nil, err
	}
	if _, ok := resp.object(); !ok {
		return nil, fmt.Errorf("%s: %w", path, errNotObject)
	}
	info := new(Info)
	if err := resp.decode(info); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

func legacyFallback(err error) bool {
	var cerr *ConnectionError
	var perr *ProtocolError
	switch {
	case errors.Is(err, errNotObject), errors.As(err, &perr):
		return true
	case errors.As(err, &cerr):
		return cerr.Reason == reasonNotFound
	}
	return false
}

// GetDeviceInfo queries the device at host for its description.
func GetDeviceInfo(ctx context.Context, host string, opts ...Option) (*Info, error) {
	s := NewSession(host, opts...)
	defer s.Close()
	return s.Info(ctx)
}
