package mystrom

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// DiscoveryPort is the UDP port myStrom devices broadcast their announcements to.
const DiscoveryPort = 7979

// DefaultScanTime is long enough to catch at least one announcement from
// every device; they announce roughly every 5 seconds.
const DefaultScanTime = 7 * time.Second

// Announcement layout: 6 bytes MAC, 1 byte type, 1 byte status.
const announcementLen = 8

const (
	statusChild      = 1 << 0
	statusRegistered = 1 << 1
	statusOnline     = 1 << 2
	statusRestarted  = 1 << 3
)

// DiscoveredDevice is a device seen announcing itself.
type DiscoveredDevice struct {
	Host       net.IP
	MAC        string // lower-case, colon separated
	Type       DeviceType
	IsChild    bool
	Registered bool // registered with the myStrom cloud
	Online     bool // connected to the myStrom cloud
	Restarted  bool
}

// ParseAnnouncement decodes an announcement datagram received from addr.
func ParseAnnouncement(addr net.Addr, b []byte) (*DiscoveredDevice, error) {
	if len(b) != announcementLen {
		return nil, &MalformedFrameError{Addr: addr, Data: append([]byte(nil), b...)}
	}
	status := b[7]
	return &DiscoveredDevice{
		Host:       addrIP(addr),
		MAC:        net.HardwareAddr(b[0:6]).String(),
		Type:       DeviceType(b[6]),
		IsChild:    status&statusChild != 0,
		Registered: status&statusRegistered != 0,
		Online:     status&statusOnline != 0,
		Restarted:  status&statusRestarted != 0,
	}, nil
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case nil:
		return nil
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	return net.ParseIP(host)
}

// Registry holds discovered devices keyed by MAC.
// A later announcement from the same MAC replaces the earlier record.
type Registry struct {
	index   map[string]int // MAC => position in devices
	devices []DiscoveredDevice
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds d, or replaces the record with the same MAC.
func (r *Registry) Register(d DiscoveredDevice) {
	if i, ok := r.index[d.MAC]; ok {
		r.devices[i] = d
		return
	}
	r.index[d.MAC] = len(r.devices)
	r.devices = append(r.devices, d)
}

// Devices returns the registered devices in the order they were first seen.
func (r *Registry) Devices() []DiscoveredDevice {
	out := make([]DiscoveredDevice, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of distinct devices registered.
func (r *Registry) Len() int { return len(r.devices) }

// Scanner listens for device announcements.
type Scanner struct {
	// Addr is the local address to listen on. Defaults to 0.0.0.0:7979.
	Addr string

	// Strict makes a malformed announcement abort the scan.
	// By default such datagrams are logged and skipped.
	Strict bool

	Logger zerolog.Logger
}

// Scan listens until ctx is done and returns the devices heard from.
// The provided context controls how long to listen; its cancellation
// or deadline expiry ends the scan but is not reported as an error.
func (sc *Scanner) Scan(ctx context.Context) ([]DiscoveredDevice, error) {
	addr := sc.Addr
	if addr == "" {
		addr = fmt.Sprintf("0.0.0.0:%d", DiscoveryPort)
	}
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ListenPacket: %w", err)
	}
	return sc.ScanConn(ctx, conn)
}

// ScanConn is like Scan but reads from conn, which it closes before returning.
func (sc *Scanner) ScanConn(ctx context.Context, conn net.PacketConn) ([]DiscoveredDevice, error) {
	defer conn.Close()

	if d, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(d)
	}
	// Unblock the read on cancellation too.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	sc.Logger.Debug().Str("addr", conn.LocalAddr().String()).Msg("listening for announcements")
	reg := NewRegistry()
	var scratch [1 << 10]byte
	for {
		nb, raddr, err := conn.ReadFrom(scratch[:])
		if err != nil {
			if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
				break
			}
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("reading announcement: %w", err)
		}
		dev, err := ParseAnnouncement(raddr, scratch[:nb])
		if err != nil {
			if sc.Strict {
				return nil, err
			}
			sc.Logger.Debug().Err(err).Msg("skipping announcement")
			continue
		}
		reg.Register(*dev)
	}

	devs := reg.Devices()
	for _, d := range devs {
		sc.Logger.Debug().
			Str("ip", d.Host.String()).
			Str("mac", d.MAC).
			Int("type", int(d.Type)).
			Msg("discovered device")
	}
	return devs, nil
}

// Discover listens for announcements on the standard port until ctx is done.
func Discover(ctx context.Context) ([]DiscoveredDevice, error) {
	var sc Scanner
	return sc.Scan(ctx)
}
