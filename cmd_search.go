package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSearchCmd(v *viper.Viper, configFile *string) *cobra.Command {
	var transports []string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List printer candidates reachable over USB and Bluetooth",
		Long: `List USB devices exposing a bulk OUT endpoint (or a serial port in serial
mode) and Bluetooth devices paired with the system. Output is JSON.

Examples:
  escpos-transport search
  escpos-transport search --transports usb
  escpos-transport search --transports usb,bluetooth`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v, *configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			return writeJSON(cmd.OutOrStdout(), a.engine.Search(transports))
		},
	}

	cmd.Flags().StringSliceVar(&transports, "transports", nil, "transports to probe (usb, bluetooth); empty probes all")
	return cmd
}
