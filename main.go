package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dsymonds/mystrom/mystrom"
)

var (
	port        = flag.Int("port", 0, "port to run on")
	scanTime    = flag.Duration("scan_time", mystrom.DefaultScanTime, "how long each discovery pass listens for announcements")
	history     = flag.Duration("history", 10*time.Minute, "how long to keep trying to contact a device that stopped announcing")
	pollTimeout = flag.Duration("poll_timeout", 2*time.Second, "timeout for querying a single device")
	token       = flag.String("token", "", "secret sent to devices with authentication enabled")
	verbose     = flag.Bool("v", false, "log at debug level")
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	dc := newDataCollector()
	prometheus.MustRegister(dc)
	go dc.discoverLoop(context.Background())

	http.Handle("/", dc)
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("addr", addr).Msg("serving")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("ListenAndServe")
	}
}

// dataCollector implements prometheus.Collector.
type dataCollector struct {
	client *http.Client // shared by all device sessions

	mu       sync.Mutex
	lastScan time.Time
	scanErr  error
	heard    int // devices in the last scan
	devs     map[string]macInfo
}

var (
	okDesc = prometheus.NewDesc("ok",
		"Whether the discovery listener is working",
		nil, nil)
	discoveredDesc = prometheus.NewDesc("discovered",
		"Count of devices heard in the last discovery pass",
		nil, nil)
	undiscoveredDesc = prometheus.NewDesc("undiscovered",
		"Count of devices missing from the last discovery pass that nonetheless respond to queries",
		nil, nil)

	deviceLabels = []string{"mac", "ip", "type"}

	powerDesc = prometheus.NewDesc("power_watts",
		"Switch power draw (W)",
		deviceLabels, nil)
	relayDesc = prometheus.NewDesc("relay_on",
		"Whether the switch relay is closed",
		deviceLabels, nil)
	temperatureDesc = prometheus.NewDesc("temperature_celsius",
		"Switch temperature (°C)",
		deviceLabels, nil)
	energyDesc = prometheus.NewDesc("energy_since_boot_ws",
		"Energy used since the switch booted (Ws)",
		deviceLabels, nil)
	bulbOnDesc = prometheus.NewDesc("bulb_on",
		"Whether the bulb is lit",
		deviceLabels, nil)
	bulbPowerDesc = prometheus.NewDesc("bulb_power_watts",
		"Bulb power draw (W)",
		deviceLabels, nil)
)

func newDataCollector() *dataCollector {
	return &dataCollector{
		client: &http.Client{},
		devs:   make(map[string]macInfo),
	}
}

func (dc *dataCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- okDesc
	ch <- discoveredDesc
	ch <- undiscoveredDesc
	ch <- powerDesc
	ch <- relayDesc
	ch <- temperatureDesc
	ch <- energyDesc
	ch <- bulbOnDesc
	ch <- bulbPowerDesc
}

// macInfo represents a previously seen device.
type macInfo struct {
	Dev  mystrom.DiscoveredDevice
	Seen time.Time // last announcement

	// Results of the last successful poll.
	Polled time.Time
	Switch *mystrom.SwitchState
	Zero   *mystrom.SwitchZeroState
	Bulb   *mystrom.BulbState
	Err    error // of the last poll, if it failed
}

// discoverLoop keeps listening for announcements until ctx is done.
func (dc *dataCollector) discoverLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sc := mystrom.Scanner{Logger: log.Logger}
		sctx, cancel := context.WithTimeout(ctx, *scanTime)
		devs, err := sc.Scan(sctx)
		cancel()

		now := time.Now()
		dc.mu.Lock()
		dc.scanErr = err
		if err == nil {
			dc.lastScan = now
			dc.heard = len(devs)
			for _, d := range devs {
				info := dc.devs[d.MAC]
				info.Dev, info.Seen = d, now
				dc.devs[d.MAC] = info
			}
		}
		for mac, info := range dc.devs {
			if now.Sub(info.Seen) > *history {
				delete(dc.devs, mac)
			}
		}
		dc.mu.Unlock()

		if err != nil {
			log.Error().Err(err).Msg("Discovery failed")
			// Usually the port is taken; don't spin.
			select {
			case <-ctx.Done():
			case <-time.After(*scanTime):
			}
		}
	}
}

func (dc *dataCollector) Collect(ch chan<- prometheus.Metric) {
	dc.mu.Lock()
	lastScan, scanErr, heard := dc.lastScan, dc.scanErr, dc.heard
	devs := make([]macInfo, 0, len(dc.devs))
	for _, info := range dc.devs {
		devs = append(devs, info)
	}
	dc.mu.Unlock()

	var ok float64
	if scanErr == nil && !lastScan.IsZero() {
		ok = 1
	}
	ch <- prometheus.MustNewConstMetric(okDesc, prometheus.GaugeValue, ok)
	ch <- prometheus.MustNewConstMetric(discoveredDesc, prometheus.GaugeValue, float64(heard))

	var undiscovered int
	for i := range devs {
		info := &devs[i]
		ctx, cancel := context.WithTimeout(context.Background(), *pollTimeout)
		err := dc.poll(ctx, info)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("mac", info.Dev.MAC).Msg("Polling device")
			info.Err = err
			continue
		}
		info.Err = nil
		info.Polled = time.Now()
		if info.Seen.Before(lastScan) {
			undiscovered++
		}
		dc.send(ch, info)
	}
	ch <- prometheus.MustNewConstMetric(undiscoveredDesc, prometheus.GaugeValue, float64(undiscovered))

	// Remember the poll results for the status page,
	// unless discovery dropped the device in the meantime.
	dc.mu.Lock()
	for _, info := range devs {
		if cur, ok := dc.devs[info.Dev.MAC]; ok {
			info.Dev, info.Seen = cur.Dev, cur.Seen
			dc.devs[info.Dev.MAC] = info
		}
	}
	dc.mu.Unlock()
}

// poll queries a device for its state. Devices without a queryable
// state (buttons, motion sensors) are left alone.
func (dc *dataCollector) poll(ctx context.Context, info *macInfo) error {
	host := info.Dev.Host.String()
	opts := []mystrom.Option{
		mystrom.WithHTTPClient(dc.client),
		mystrom.WithToken(*token),
		mystrom.WithLogger(log.Logger),
	}
	switch t := info.Dev.Type; {
	case t == mystrom.TypeSwitchZero:
		z := mystrom.NewSwitchZero(host, opts...)
		defer z.Close()
		st, err := z.Refresh(ctx)
		if err != nil {
			return err
		}
		info.Zero = st
	case t.IsSwitch():
		sw := mystrom.NewSwitch(host, opts...)
		defer sw.Close()
		st, err := sw.Refresh(ctx)
		if err != nil {
			return err
		}
		info.Switch = st
	case t == mystrom.TypeBulb || t == mystrom.TypeLEDStrip:
		b := mystrom.NewBulb(host, info.Dev.MAC, opts...)
		defer b.Close()
		st, err := b.Refresh(ctx)
		if err != nil {
			return err
		}
		info.Bulb = st
	}
	return nil
}

func (dc *dataCollector) send(ch chan<- prometheus.Metric, info *macInfo) {
	labels := []string{info.Dev.MAC, info.Dev.Host.String(), info.Dev.Type.String()}
	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}
	optGauge := func(desc *prometheus.Desc, v *float64) {
		if v != nil {
			gauge(desc, *v)
		}
	}
	boolGauge := func(desc *prometheus.Desc, v *bool) {
		if v != nil {
			gauge(desc, b2f(*v))
		}
	}

	switch {
	case info.Zero != nil:
		boolGauge(relayDesc, info.Zero.Relay)
	case info.Switch != nil:
		st := info.Switch
		boolGauge(relayDesc, st.Relay)
		optGauge(powerDesc, st.Power)
		optGauge(temperatureDesc, st.Temperature)
		optGauge(energyDesc, st.EnergySinceBoot)
	case info.Bulb != nil:
		boolGauge(bulbOnDesc, info.Bulb.On)
		optGauge(bulbPowerDesc, info.Bulb.Power)
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (dc *dataCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Last    time.Time
		ScanErr error
		Devices map[string]macInfo
		DevSeq  []string // MACs
	}

	dc.mu.Lock()
	data.Last = dc.lastScan
	data.ScanErr = dc.scanErr
	data.Devices = make(map[string]macInfo, len(dc.devs))
	for mac, info := range dc.devs {
		data.Devices[mac] = info
	}
	dc.mu.Unlock()

	// Build list of device MACs, ordered by IP.
	for mac := range data.Devices {
		data.DevSeq = append(data.DevSeq, mac)
	}
	sort.Slice(data.DevSeq, func(i, j int) bool {
		ipi := data.Devices[data.DevSeq[i]].Dev.Host.To4()
		ipj := data.Devices[data.DevSeq[j]].Dev.Host.To4()
		if ipi == nil || ipj == nil {
			return data.DevSeq[i] < data.DevSeq[j]
		}
		return bytes.Compare(ipi, ipj) < 0
	})

	var buf bytes.Buffer
	if err := frontTmpl.Execute(&buf, data); err != nil {
		http.Error(w, "internal error: "+err.Error(), 500)
		return
	}
	io.Copy(w, &buf)
}

var frontTmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"roughSince": func(t time.Time) string {
		d := time.Since(t).Truncate(1 * time.Second)
		return d.String()
	},
	"watts": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1fW", *v)
	},
	"onOff": func(v *bool) string {
		switch {
		case v == nil:
			return "-"
		case *v:
			return "on"
		}
		return "off"
	},
	"ip": func(ip net.IP) string { return ip.String() },
}).Parse(`
<!doctype html><html lang="en">
<head><title>mystrom</title></head>
<body>

<h1>mystrom</h1>

Last scan: <b>{{if .Last.IsZero}}never{{else}}{{roughSince .Last}}{{end}}</b>
{{with .ScanErr}}<p>Discovery is failing: {{.}}</p>{{end}}

<table>
<tr>
	<th>MAC</th><th>IP</th><th>seen</th>
	<th>type</th><th>state</th><th>last power</th>
</tr>
{{range .DevSeq}}
{{$d := index $.Devices .}}
<tr>
	<td>{{$d.Dev.MAC}}</td>
	<td>{{ip $d.Dev.Host}}</td>
	<td>{{roughSince $d.Seen}}</td>
	<td>{{$d.Dev.Type}}</td>
	{{if $d.Err}}
	<td colspan="2">{{$d.Err}}</td>
	{{else if $d.Switch}}
	<td>{{onOff $d.Switch.Relay}}</td><td>{{watts $d.Switch.Power}}</td>
	{{else if $d.Zero}}
	<td>{{onOff $d.Zero.Relay}}</td><td>-</td>
	{{else if $d.Bulb}}
	<td>{{onOff $d.Bulb.On}}</td><td>{{watts $d.Bulb.Power}}</td>
	{{else}}
	<td>-</td><td>-</td>
	{{end}}
</tr>
{{end}}
</table>

</body>
</html>
`))
