package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsymonds/mystrom/mystrom"
)

func buttonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "button",
		Short: "Configure a WiFi Button",
	}

	read := &cobra.Command{
		Use:     "read",
		Short:   "Show the button configuration",
		Args:    cobra.NoArgs,
		PreRunE: needHostAndMAC,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := mystrom.NewButton(host, mac, options()...)
			defer b.Close()
			cfg, err := b.Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	var actions mystrom.ButtonActions
	write := &cobra.Command{
		Use:     "write",
		Short:   "Set the URLs called for each gesture",
		Args:    cobra.NoArgs,
		PreRunE: needHostAndMAC,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := mystrom.NewButton(host, mac, options()...)
			defer b.Close()
			if err := b.SetActions(cmd.Context(), actions); err != nil {
				return err
			}
			fmt.Println("Actions written; press the button to apply them.")
			return nil
		},
	}
	write.Flags().StringVar(&actions.Single, "single", "", "URL for a single press")
	write.Flags().StringVar(&actions.Double, "double", "", "URL for a double press")
	write.Flags().StringVar(&actions.Long, "long", "", "URL for a long press")
	write.Flags().StringVar(&actions.Touch, "touch", "", "URL for a touch (Button+ only)")

	var (
		hass   string
		port   int
		hassID string
	)
	ha := &cobra.Command{
		Use:     "home-assistant",
		Short:   "Point every gesture at a Home Assistant instance",
		Args:    cobra.NoArgs,
		PreRunE: needHostAndMAC,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hass == "" {
				return fmt.Errorf("--hass is required")
			}
			id := hassID
			if id == "" {
				id = mystrom.NormalizeMAC(mac)
			}
			b := mystrom.NewButton(host, mac, options()...)
			defer b.Close()
			if err := b.SetActions(cmd.Context(), mystrom.HomeAssistantActions(hass, port, id)); err != nil {
				return err
			}
			fmt.Println("Actions written; press the button to apply them.")
			return nil
		},
	}
	ha.Flags().StringVar(&hass, "hass", "", "Home Assistant address")
	ha.Flags().IntVar(&port, "port", 8123, "Home Assistant port")
	ha.Flags().StringVar(&hassID, "id", "", "button identifier reported to Home Assistant (default: the MAC)")

	reset := &cobra.Command{
		Use:     "reset",
		Short:   "Clear all gesture URLs",
		Args:    cobra.NoArgs,
		PreRunE: needHostAndMAC,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := mystrom.NewButton(host, mac, options()...)
			defer b.Close()
			return b.ResetActions(cmd.Context())
		},
	}

	cmd.AddCommand(read, write, ha, reset)
	return cmd
}
