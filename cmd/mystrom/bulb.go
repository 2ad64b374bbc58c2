package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsymonds/mystrom/mystrom"
)

// parseHSV parses "H;S;V" or "H,S,V".
func parseHSV(s string) (mystrom.HSV, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	if len(parts) != 3 {
		return mystrom.HSV{}, fmt.Errorf("color %q: want hue;saturation;value", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return mystrom.HSV{}, fmt.Errorf("color %q: %w", s, err)
		}
		v[i] = n
	}
	return mystrom.HSV{Hue: v[0], Saturation: v[1], Value: v[2]}, nil
}

func bulbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulb",
		Short: "Control a WiFi Bulb or LED strip",
	}

	// bulbRun wraps a bulb operation as a command body.
	bulbRun := func(op func(ctx context.Context, b *mystrom.Bulb, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			b := mystrom.NewBulb(host, mac, options()...)
			defer b.Close()
			return op(cmd.Context(), b, args)
		}
	}
	sub := func(use, short string, args cobra.PositionalArgs, op func(context.Context, *mystrom.Bulb, []string) error) *cobra.Command {
		return &cobra.Command{
			Use:     use,
			Short:   short,
			Args:    args,
			PreRunE: needHostAndMAC,
			RunE:    bulbRun(op),
		}
	}
	duration := func(args []string) (time.Duration, error) {
		return time.ParseDuration(args[0])
	}

	flash := sub("flash <duration>", "Alternate between two colors", cobra.ExactArgs(1), nil)
	color1 := flash.Flags().String("color1", "0;100;100", "first color as hue;saturation;value")
	color2 := flash.Flags().String("color2", "240;100;100", "second color as hue;saturation;value")
	flash.RunE = bulbRun(func(ctx context.Context, b *mystrom.Bulb, args []string) error {
		d, err := duration(args)
		if err != nil {
			return err
		}
		c1, err := parseHSV(*color1)
		if err != nil {
			return err
		}
		c2, err := parseHSV(*color2)
		if err != nil {
			return err
		}
		return b.SetFlashing(ctx, d, c1, c2)
	})

	cmd.AddCommand(
		sub("on", "Turn on with the previous color", cobra.NoArgs, func(ctx context.Context, b *mystrom.Bulb, _ []string) error {
			return b.SetOn(ctx)
		}),
		sub("off", "Turn off", cobra.NoArgs, func(ctx context.Context, b *mystrom.Bulb, _ []string) error {
			return b.SetOff(ctx)
		}),
		sub("state", "Show the bulb state", cobra.NoArgs, func(ctx context.Context, b *mystrom.Bulb, _ []string) error {
			if _, err := b.Refresh(ctx); err != nil {
				return err
			}
			color, mode := b.Color()
			fmt.Printf("On:         %v\n", b.On())
			fmt.Printf("Color:      %s (%s)\n", color, mode)
			if p, ok := b.Power(); ok {
				fmt.Printf("Power:      %.2f W\n", p)
			}
			if d, ok := b.TransitionTime(); ok {
				fmt.Printf("Transition: %v\n", d)
			}
			fmt.Printf("Device:     %s, firmware %s\n", b.BulbType(), b.Firmware())
			return nil
		}),
		sub("hex <WWRRGGBB>", "Set an 8 hex digit color", cobra.ExactArgs(1), func(ctx context.Context, b *mystrom.Bulb, args []string) error {
			return b.SetColorHex(ctx, args[0])
		}),
		sub("hsv <hue> <saturation> <value>", "Set an HSV color", cobra.ExactArgs(3), func(ctx context.Context, b *mystrom.Bulb, args []string) error {
			c, err := parseHSV(strings.Join(args, ";"))
			if err != nil {
				return err
			}
			return b.SetColorHSV(ctx, c.Hue, c.Saturation, c.Value)
		}),
		sub("white", "Set full white", cobra.NoArgs, func(ctx context.Context, b *mystrom.Bulb, _ []string) error {
			return b.SetWhite(ctx)
		}),
		sub("ramp <milliseconds>", "Set the transition time", cobra.ExactArgs(1), func(ctx context.Context, b *mystrom.Bulb, args []string) error {
			ms, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			return b.SetTransitionTime(ctx, ms)
		}),
		sub("rainbow <duration>", "Cycle through the color wheel", cobra.ExactArgs(1), func(ctx context.Context, b *mystrom.Bulb, args []string) error {
			d, err := duration(args)
			if err != nil {
				return err
			}
			return b.SetRainbow(ctx, d)
		}),
		sub("sunrise <duration>", "Ramp up the brightness like a sunrise", cobra.ExactArgs(1), func(ctx context.Context, b *mystrom.Bulb, args []string) error {
			d, err := duration(args)
			if err != nil {
				return err
			}
			return b.SetSunrise(ctx, d)
		}),
		flash,
	)
	return cmd
}
