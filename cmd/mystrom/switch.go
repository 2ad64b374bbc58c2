package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsymonds/mystrom/mystrom"
)

// relay is implemented by both switch clients.
type relay interface {
	TurnOn(context.Context) error
	TurnOff(context.Context) error
	Toggle(context.Context) error
	Close() error
}

// relayCmds returns the on/off/toggle subcommands, each of which
// prints the state read back from the device.
func relayCmds(open func() relay, show func(relay)) []*cobra.Command {
	mk := func(use, short string, op func(relay, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:     use,
			Short:   short,
			Args:    cobra.NoArgs,
			PreRunE: needHost,
			RunE: func(cmd *cobra.Command, args []string) error {
				r := open()
				defer r.Close()
				if err := op(r, cmd.Context()); err != nil {
					return err
				}
				show(r)
				return nil
			},
		}
	}
	return []*cobra.Command{
		mk("on", "Close the relay", relay.TurnOn),
		mk("off", "Open the relay", relay.TurnOff),
		mk("toggle", "Flip the relay", relay.Toggle),
	}
}

func onOff(on, ok bool) string {
	switch {
	case !ok:
		return "unknown"
	case on:
		return "on"
	}
	return "off"
}

func showSwitch(r relay) {
	sw := r.(*mystrom.Switch)
	fmt.Printf("Relay:       %s\n", onOff(sw.Relay()))
	if w, ok := sw.Consumption(); ok {
		fmt.Printf("Power:       %.1f W\n", w)
	}
	if w, ok := sw.ConsumedWs(); ok {
		fmt.Printf("Average:     %.1f W\n", w)
	}
	if e, ok := sw.EnergySinceBoot(); ok {
		fmt.Printf("Since boot:  %.2f Ws\n", e)
	}
	if c, ok := sw.Temperature(); ok {
		fmt.Printf("Temperature: %.2f °C\n", c)
	}
	fmt.Printf("Device:      %s, firmware %s, MAC %s\n", sw.Type(), sw.Firmware(), sw.MAC())
}

func switchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch",
		Short: "Control a WiFi Switch",
	}
	open := func() relay { return mystrom.NewSwitch(host, options()...) }
	cmd.AddCommand(relayCmds(open, showSwitch)...)
	cmd.AddCommand(&cobra.Command{
		Use:     "state",
		Short:   "Show relay state and power",
		Args:    cobra.NoArgs,
		PreRunE: needHost,
		RunE: func(cmd *cobra.Command, args []string) error {
			sw := mystrom.NewSwitch(host, options()...)
			defer sw.Close()
			if _, err := sw.Refresh(cmd.Context()); err != nil {
				return err
			}
			showSwitch(sw)
			return nil
		},
	}, &cobra.Command{
		Use:     "temp",
		Short:   "Show the full temperature reading",
		Args:    cobra.NoArgs,
		PreRunE: needHost,
		RunE: func(cmd *cobra.Command, args []string) error {
			sw := mystrom.NewSwitch(host, options()...)
			defer sw.Close()
			temp, err := sw.FullTemperature(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(temp)
		},
	})
	return cmd
}

func showZero(r relay) {
	z := r.(*mystrom.SwitchZero)
	fmt.Printf("Relay:  %s\n", onOff(z.Relay()))
	fmt.Printf("Device: firmware %s, MAC %s\n", z.Firmware(), z.MAC())
}

func zeroCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zero",
		Short: "Control a Switch Zero",
	}
	open := func() relay { return mystrom.NewSwitchZero(host, options()...) }
	cmd.AddCommand(relayCmds(open, showZero)...)
	cmd.AddCommand(&cobra.Command{
		Use:     "state",
		Short:   "Show relay state",
		Args:    cobra.NoArgs,
		PreRunE: needHost,
		RunE: func(cmd *cobra.Command, args []string) error {
			z := mystrom.NewSwitchZero(host, options()...)
			defer z.Close()
			if _, err := z.Refresh(cmd.Context()); err != nil {
				return err
			}
			showZero(z)
			return nil
		},
	})
	return cmd
}
