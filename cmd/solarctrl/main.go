/*
solarctrl turns discretionary myStrom switches on and off
to track the spare solar production reported by Prometheus.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	promrawapi "github.com/prometheus/client_golang/api"
	promclient "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/dsymonds/mystrom/mystrom"
)

var (
	configFile = flag.String("config_file", "solarctrl.yaml", "configuration `filename`")
	vFlag      = flag.Bool("v", false, "be verbose")
	loop       = flag.Duration("loop", 0, "if set, run and evaluate every `period`")
	dryRun     = flag.Bool("n", false, "only log what would be switched")
)

const (
	// defaultSolarQuery is the Prometheus query expression to retrieve the current solar production in Watts as a 1-vector.
	defaultSolarQuery = `sum(power_production_watts{job="solarmon"})`
)

type Config struct {
	PrometheusAddr string `yaml:"prometheus_addr"` // URL
	SolarQuery     string `yaml:"solar_query"`

	BaselineConsumption Power `yaml:"baseline_consumption"`

	// Token is sent to switches with REST API authentication enabled.
	Token    string        `yaml:"token"`
	ScanTime time.Duration `yaml:"scan_time"`

	DiscretionarySwitches []SwitchSelector `yaml:"discretionary_switches"`
}

func parseConfig(raw []byte) (Config, error) {
	var config Config
	if err := yaml.UnmarshalStrict(raw, &config); err != nil {
		return Config{}, err
	}
	if config.SolarQuery == "" {
		config.SolarQuery = defaultSolarQuery
	}
	if config.ScanTime <= 0 {
		config.ScanTime = mystrom.DefaultScanTime
	}
	return config, nil
}

// Selector returns the selector matching p, or nil if p is not discretionary.
func (cfg Config) Selector(p Plug) *SwitchSelector {
	for i, ss := range cfg.DiscretionarySwitches {
		if ss.Matches(p) {
			return &cfg.DiscretionarySwitches[i]
		}
	}
	return nil
}

type SwitchSelector struct {
	MAC         string
	Consumption Power
}

func (ss SwitchSelector) Matches(p Plug) bool {
	return mystrom.NormalizeMAC(ss.MAC) == mystrom.NormalizeMAC(p.MAC)
}

type Plug struct {
	MAC   string
	Host  string
	State *mystrom.SwitchState

	// Assumed overrides the power in State.
	AssumedPower Power
}

func (p Plug) On() bool { return p.State.Relay != nil && *p.State.Relay }
func (p Plug) Power() Power {
	if p.AssumedPower > 0 {
		return p.AssumedPower
	}
	if p.State.Power == nil {
		return 0
	}
	return Power(*p.State.Power)
}

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *vFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	configRaw, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msgf("Reading config file %s", *configFile)
	}
	config, err := parseConfig(configRaw)
	if err != nil {
		log.Fatal().Err(err).Msgf("Parsing config from %s", *configFile)
	}

	log.Debug().Str("addr", config.PrometheusAddr).Msg("Prometheus")
	promClient, err := promrawapi.NewClient(promrawapi.Config{
		Address: config.PrometheusAddr,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Creating Prometheus client")
	}
	promAPI := promclient.NewAPI(promClient)

	// Evaluate at least once.
	if err := evaluate(context.Background(), config, promAPI); err != nil {
		log.Error().Err(err).Msg("Evaluating")
	}

	if *loop <= 0 {
		return
	}

	for range time.NewTicker(*loop).C {
		if err := evaluate(context.Background(), config, promAPI); err != nil {
			log.Error().Err(err).Msg("Evaluating")
		}
	}
}

type Power int // measured in Watts

func (p Power) String() string {
	if p > 1000 {
		return fmt.Sprintf("%.2fkW", float64(p)/1000)
	}
	return fmt.Sprintf("%dW", p)
}

func solarPower(ctx context.Context, promAPI promclient.API, query string) (Power, error) {
	v, warns, err := promAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("Prometheus query evaluation: %w", err)
	}
	for _, w := range warns {
		log.Debug().Str("warning", w).Msg("During Prometheus query evaluation")
	}

	if v.Type() != prommodel.ValVector {
		return 0, fmt.Errorf("Prometheus query yielded %v, want vector", v.Type())
	}
	vec := v.(prommodel.Vector)
	if len(vec) != 1 {
		return 0, fmt.Errorf("Prometheus query yielded vector of %d values, want 1", len(vec))
	}
	return Power(vec[0].Value), nil
}

// A change is a switch to turn on or off.
type change struct {
	Plug Plug
	On   bool
}

// plan decides which discretionary switches to flip so that consumption
// tracks the spare solar production. Switches are considered in MAC order.
func plan(config Config, solar Power, plugs []Plug) (spare Power, changes []change) {
	// Compute how much spare solar there is,
	// and collate the discretionary switches at the same time.
	var disc []Plug
	spare = solar - config.BaselineConsumption
	for _, p := range plugs {
		spare -= p.Power()

		sel := config.Selector(p)
		if sel == nil {
			continue
		}
		if !p.On() {
			// Fill in the configured consumption value so we can use it below.
			p.AssumedPower = sel.Consumption
		}
		disc = append(disc, p)
	}
	sort.Slice(disc, func(i, j int) bool { return disc[i].MAC < disc[j].MAC })

	for _, p := range disc {
		if spare < 0 && p.On() {
			spare += p.Power()
			changes = append(changes, change{Plug: p, On: false})
		} else if spare > 0 && !p.On() {
			spare -= p.Power()
			changes = append(changes, change{Plug: p, On: true})
		}
	}
	return spare, changes
}

func evaluate(ctx context.Context, config Config, promAPI promclient.API) error {
	// Fetch latest solar production.
	solar, err := solarPower(ctx, promAPI, config.SolarQuery)
	if err != nil {
		return fmt.Errorf("querying solar power: %w", err)
	}
	log.Debug().Stringer("solar", solar).Msg("Current solar")

	plugs, err := allPlugs(ctx, config)
	if err != nil {
		return err
	}

	spare, changes := plan(config, solar, plugs)
	log.Debug().Stringer("spare", spare).Msg("Spare solar after changes")

	for _, c := range changes {
		verb := "off"
		if c.On {
			verb = "on"
		}
		log.Info().Str("mac", c.Plug.MAC).Str("host", c.Plug.Host).Stringer("power", c.Plug.Power()).Msgf("Turning %s", verb)
		if *dryRun {
			continue
		}
		if err := setRelay(ctx, config, c); err != nil {
			log.Error().Err(err).Str("mac", c.Plug.MAC).Msgf("Failed to turn %s", verb)
		}
	}
	return nil
}

func setRelay(ctx context.Context, config Config, c change) error {
	sw := mystrom.NewSwitch(c.Plug.Host, mystrom.WithToken(config.Token), mystrom.WithLogger(log.Logger))
	defer sw.Close()
	if c.On {
		return sw.TurnOn(ctx)
	}
	return sw.TurnOff(ctx)
}

func allPlugs(ctx context.Context, config Config) ([]Plug, error) {
	dctx, cancel := context.WithTimeout(ctx, config.ScanTime)
	defer cancel()

	sc := mystrom.Scanner{Logger: log.Logger}
	devs, err := sc.Scan(dctx)
	if err != nil {
		return nil, fmt.Errorf("discovering switches: %w", err)
	}
	var plugs []Plug
	for _, d := range devs {
		// Switch Zero has no power metering to budget with.
		if !d.Type.IsSwitch() || d.Type == mystrom.TypeSwitchZero {
			continue
		}
		sw := mystrom.NewSwitch(d.Host.String(), mystrom.WithToken(config.Token), mystrom.WithLogger(log.Logger))
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st, err := sw.Refresh(qctx)
		cancel()
		sw.Close()
		if err != nil {
			// Its consumption is unknown, so the budget is off; better not to act at all.
			return nil, fmt.Errorf("querying switch %s at %v: %w", d.MAC, d.Host, err)
		}
		plugs = append(plugs, Plug{
			MAC:   d.MAC,
			Host:  d.Host.String(),
			State: st,
		})
	}
	return plugs, nil
}
