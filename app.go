package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-transport/config"
	"github.com/nixxel-company-limited/escpos-transport/engine"
	"github.com/nixxel-company-limited/escpos-transport/observability"
)

// app bundles what every command needs
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	engine  *engine.Engine
}

func newApp(v *viper.Viper, configFile string) (*app, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	metrics := observability.NewMetrics()
	e, err := engine.NewFromConfig(cfg, logger, metrics)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, metrics: metrics, engine: e}, nil
}

// Close shuts the engine down and flushes the logger
func (a *app) Close() {
	a.engine.Shutdown()
	_ = a.logger.Sync()
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// printerRequest turns the printer.* settings into an open request.
// Negative USB numbers mean the field was not set.
func printerRequest(p config.PrinterConfig) engine.OpenRequest {
	req := engine.OpenRequest{
		Transport:     p.Transport,
		Host:          p.Host,
		Port:          p.Port,
		TimeoutMillis: p.Timeout,
		Address:       p.Address,
		SerialNumber:  p.SerialNumber,
		SerialPort:    p.SerialPort,
	}
	if p.VendorID >= 0 {
		req.VendorID = intPtr(p.VendorID)
	}
	if p.ProductID >= 0 {
		req.ProductID = intPtr(p.ProductID)
	}
	if p.InterfaceNumber >= 0 {
		req.InterfaceNumber = intPtr(p.InterfaceNumber)
	}
	return req
}

func intPtr(v int) *int { return &v }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
