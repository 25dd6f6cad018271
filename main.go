package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return newRootCmd(viper.New()).ExecuteContext(context.Background())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "escpos-transport",
		Short: "Send raw ESC/POS bytes to printers over TCP, Bluetooth or USB",
		Long: `escpos-transport opens printer sessions over TCP, Bluetooth RFCOMM or USB
and discovers reachable printers.

Commands:
  escpos-transport serve             Forward raw TCP clients to one printer
  escpos-transport search            List USB and paired Bluetooth printers
  escpos-transport print <file>      Send a file to the printer
  escpos-transport probe             Open the printer and report capabilities

Every setting can be given as a flag, a config file entry or an environment
variable (printer.host is PRINTER_HOST).`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")

	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	flags.String("log-format", "console", "log format (console, json)")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	flags.String("usb-mode", "auto", "usb access mode (auto, direct, serial)")
	_ = v.BindPFlag("usb.mode", flags.Lookup("usb-mode"))

	flags.StringP("transport", "t", "", "printer transport (wifi, bluetooth, usb)")
	_ = v.BindPFlag("printer.transport", flags.Lookup("transport"))
	flags.String("host", "", "printer host for wifi")
	_ = v.BindPFlag("printer.host", flags.Lookup("host"))
	flags.Int("port", 0, "printer port for wifi (default 9100)")
	_ = v.BindPFlag("printer.port", flags.Lookup("port"))
	flags.Int("timeout", 0, "wifi connect timeout in milliseconds")
	_ = v.BindPFlag("printer.timeout_ms", flags.Lookup("timeout"))
	flags.String("address", "", "printer Bluetooth address")
	_ = v.BindPFlag("printer.address", flags.Lookup("address"))
	flags.String("vendor-id", "", "usb vendor id (hex, e.g. 0x0416)")
	_ = v.BindPFlag("printer.vendor_id", flags.Lookup("vendor-id"))
	flags.String("product-id", "", "usb product id (hex, e.g. 0x5011)")
	_ = v.BindPFlag("printer.product_id", flags.Lookup("product-id"))
	flags.Int("interface", -1, "usb interface number to search for a bulk OUT endpoint")
	_ = v.BindPFlag("printer.interface_number", flags.Lookup("interface"))
	flags.String("serial-number", "", "usb serial number when several printers share VID/PID")
	_ = v.BindPFlag("printer.serial_number", flags.Lookup("serial-number"))
	flags.String("serial-port", "", "serial port or device file of a usb printer")
	_ = v.BindPFlag("printer.serial_port", flags.Lookup("serial-port"))

	rootCmd.AddCommand(newServeCmd(v, &configFile))
	rootCmd.AddCommand(newSearchCmd(v, &configFile))
	rootCmd.AddCommand(newPrintCmd(v, &configFile))
	rootCmd.AddCommand(newProbeCmd(v, &configFile))

	return rootCmd
}
