package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

type probeResult struct {
	SessionID    string               `json:"sessionId"`
	Capabilities adapter.Capabilities `json:"capabilities"`
	Status       adapter.Status       `json:"status"`
}

func newProbeCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Open the configured printer and report its capabilities and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			caps, err := a.engine.GetCapabilities(res.SessionID)
			if err != nil {
				return err
			}
			status, err := a.engine.ReadStatus(res.SessionID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), probeResult{
				SessionID:    res.SessionID,
				Capabilities: caps,
				Status:       status,
			})
		},
	}
}
