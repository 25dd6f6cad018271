package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-transport/observability"
	"github.com/nixxel-company-limited/escpos-transport/server"
)

func newServeCmd(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Forward raw TCP print jobs to the configured printer",
		Long: `Listen on server_address and forward every byte received from TCP clients
to one printer session.

Examples:
  escpos-transport serve --transport usb --vendor-id 0x0416 --product-id 0x5011
  escpos-transport serve --transport wifi --host 192.168.1.50 --listen :9100
  SERVER_ADDRESS=:9100 PRINTER_TRANSPORT=bluetooth PRINTER_ADDRESS=00:11:22:33:44:55 escpos-transport serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v, *configFile)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			if a.cfg.MetricsAddress != "" {
				observability.ServeMetrics(ctx, a.cfg.MetricsAddress, a.metrics, a.logger)
			}

			svr := server.New(a.engine, printerRequest(a.cfg.Printer), a.cfg.ServerAddress, a.logger)
			if err := svr.StartAsync(); err != nil {
				return err
			}

			<-ctx.Done()
			a.logger.Info("shutdown signal received")
			if err := svr.Stop(); err != nil {
				a.logger.Warn("server stop failed", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().String("listen", "", "listen address (default localhost:9100)")
	_ = v.BindPFlag("server_address", cmd.Flags().Lookup("listen"))
	cmd.Flags().String("metrics-address", "", "serve Prometheus metrics on this address")
	_ = v.BindPFlag("metrics_address", cmd.Flags().Lookup("metrics-address"))

	return cmd
}
