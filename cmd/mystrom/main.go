/*
mystrom controls myStrom devices from the command line.

Defaults for --host, --token and --mac are read from MYSTROM_HOST,
MYSTROM_TOKEN and MYSTROM_MAC, which may also be set in a .env file.
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dsymonds/mystrom/mystrom"
)

var (
	host    string
	token   string
	mac     string
	timeout time.Duration
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "mystrom",
	Short:         "Control myStrom devices on the local network",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&host, "host", "H", os.Getenv("MYSTROM_HOST"), "device address or URL")
	pf.StringVarP(&token, "token", "t", os.Getenv("MYSTROM_TOKEN"), "secret for devices with authentication enabled")
	pf.StringVarP(&mac, "mac", "m", os.Getenv("MYSTROM_MAC"), "device MAC address (bulbs and buttons)")
	pf.DurationVar(&timeout, "timeout", mystrom.DefaultTimeout, "per-request timeout")
	pf.BoolVarP(&debug, "debug", "d", false, "log requests")

	rootCmd.AddCommand(discoverCmd(), infoCmd(), switchCmd(), zeroCmd(), bulbCmd(), pirCmd(), buttonCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var (
	errNoHost = errors.New("no device given; use --host or set MYSTROM_HOST")
	errNoMAC  = errors.New("no MAC given; use --mac or set MYSTROM_MAC")
)

func options() []mystrom.Option {
	return []mystrom.Option{
		mystrom.WithToken(token),
		mystrom.WithTimeout(timeout),
		mystrom.WithLogger(log.Logger),
	}
}

func needHost(cmd *cobra.Command, args []string) error {
	if host == "" {
		return errNoHost
	}
	return nil
}

func needHostAndMAC(cmd *cobra.Command, args []string) error {
	if err := needHost(cmd, args); err != nil {
		return err
	}
	if mac == "" {
		return errNoMAC
	}
	return nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", b)
	return nil
}

func discoverCmd() *cobra.Command {
	var scanTime time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List devices announcing themselves on the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), scanTime)
			defer cancel()
			fmt.Fprintf(os.Stderr, "Listening for %v ...\n", scanTime)
			sc := mystrom.Scanner{Logger: log.Logger}
			devs, err := sc.Scan(ctx)
			if err != nil {
				return err
			}
			for _, d := range devs {
				fmt.Printf("%-15s  %s  %-20s  registered=%v online=%v child=%v\n",
					d.Host, d.MAC, d.Type, d.Registered, d.Online, d.IsChild)
			}
			fmt.Fprintf(os.Stderr, "%d devices\n", len(devs))
			return nil
		},
	}
	cmd.Flags().DurationVar(&scanTime, "time", mystrom.DefaultScanTime, "how long to listen")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "info",
		Short:   "Show the device description",
		Args:    cobra.NoArgs,
		PreRunE: needHost,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := mystrom.GetDeviceInfo(cmd.Context(), host, options()...)
			if err != nil {
				return err
			}
			fmt.Printf("Type:     %s (%d)\n", info.TypeName(), int(info.Type))
			fmt.Printf("Firmware: %s\n", info.Version)
			fmt.Printf("MAC:      %s\n", info.MAC)
			if info.Name != "" {
				fmt.Printf("Name:     %s\n", info.Name)
			}
			fmt.Printf("Network:  %s ip=%s gw=%s dns=%s static=%v connected=%v\n",
				info.SSID, info.IP, info.Gateway, info.DNS, info.Static, info.Connected)
			return nil
		},
	}
}

func pirCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pir",
		Short:   "Read the motion sensor",
		Args:    cobra.NoArgs,
		PreRunE: needHost,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := mystrom.NewPIR(host, options()...)
			defer p.Close()

			motion, motionOK, err := p.GetMotion(ctx)
			if err != nil {
				return err
			}
			light, err := p.GetLight(ctx)
			if err != nil {
				return err
			}
			temps, err := p.GetTemperatures(ctx)
			if err != nil {
				return err
			}
			if motionOK {
				fmt.Printf("Motion:      %v\n", motion)
			}
			if light.Intensity != nil {
				fmt.Printf("Light:       %v\n", *light.Intensity)
			}
			if light.Day != nil {
				fmt.Printf("Daylight:    %v\n", *light.Day)
			}
			if temps.Compensated != nil {
				fmt.Printf("Temperature: %.2f °C\n", *temps.Compensated)
			}
			return nil
		},
	}
}
