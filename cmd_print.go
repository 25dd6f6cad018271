package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPrintCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "print [file|-]",
		Short: "Send a file of raw bytes to the configured printer",
		Long: `Open the configured printer, write the whole file and close the session.
Without an argument or with "-" the bytes are read from stdin.

Examples:
  escpos-transport print receipt.bin --transport wifi --host 192.168.1.50
  cat receipt.bin | escpos-transport print --transport usb --vendor-id 0x0416 --product-id 0x5011`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			a, err := newApp(v, *configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.Open(printerRequest(a.cfg.Printer))
			if err != nil {
				return err
			}
			defer a.engine.Close(res.SessionID)

			if err := a.engine.Write(res.SessionID, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes via %s\n", len(data), res.SessionID)
			return nil
		},
	}
}
