// Package engine exposes the printer session operations: open, write,
// readStatus, getCapabilities, close and search.
package engine

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
	"github.com/nixxel-company-limited/escpos-transport/config"
	"github.com/nixxel-company-limited/escpos-transport/discovery"
	"github.com/nixxel-company-limited/escpos-transport/observability"
	"github.com/nixxel-company-limited/escpos-transport/session"
)

// WifiDriver opens TCP printers
type WifiDriver interface {
	Open(p adapter.WifiParams) (adapter.Channel, error)
}

// BluetoothDriver opens RFCOMM printers
type BluetoothDriver interface {
	Open(p adapter.BluetoothParams) (adapter.Channel, error)
}

// USBDriver opens USB printers, directly or through a serial port
type USBDriver interface {
	Open(p adapter.USBParams) (adapter.Channel, error)
}

// Options wires an Engine. Nil drivers make the matching transport fail
// with connect_failed.
type Options struct {
	SessionPrefix string
	DefaultPort   int

	Wifi      WifiDriver
	Bluetooth BluetoothDriver
	USB       USBDriver

	// Discoverers run in order during Search.
	Discoverers []discovery.Discoverer

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Engine owns a session registry and the drivers feeding it. All methods
// are safe for concurrent use.
type Engine struct {
	registry    *session.Registry
	wifi        WifiDriver
	bluetooth   BluetoothDriver
	usb         USBDriver
	discoverers []discovery.Discoverer
	defaultPort int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// New creates an engine from explicit options
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	port := opts.DefaultPort
	if port == 0 {
		port = adapter.DefaultTCPPort
	}
	e := &Engine{
		registry:    session.NewRegistry(opts.SessionPrefix),
		wifi:        opts.Wifi,
		bluetooth:   opts.Bluetooth,
		usb:         opts.USB,
		defaultPort: port,
		logger:      logger.Named("engine"),
		metrics:     opts.Metrics,
	}
	for _, d := range opts.Discoverers {
		if d != nil {
			e.discoverers = append(e.discoverers, observedDiscoverer{Discoverer: d, e: e})
		}
	}
	return e
}

// NewFromConfig builds the platform drivers and discoverers described by cfg.
// With usb.mode serial, USB printers are opened through the port resolved by
// the platform device registry, which also serves USB discovery.
func NewFromConfig(cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode, err := adapter.ResolveUSBMode(adapter.USBMode(cfg.USB.Mode), runtime.GOOS)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usb mode: %w", err)
	}

	opts := Options{
		SessionPrefix: cfg.Session.Prefix,
		DefaultPort:   cfg.TCP.DefaultPort,
		Wifi:          adapter.NewTCPDriver(cfg.TCP.ConnectTimeout, cfg.TCP.ResolveTimeout),
		Bluetooth:     adapter.NewBluetoothDriver(cfg.Bluetooth.Channel),
		Logger:        logger,
		Metrics:       metrics,
	}

	bt := discovery.NewBluetoothDiscoverer(cfg.Bluetooth.QueryTimeout, logger)
	switch mode {
	case adapter.USBModeSerial:
		walker := discovery.NewSerialPortWalker()
		opts.USB = adapter.NewSerialDriver(walker)
		opts.Discoverers = []discovery.Discoverer{walker, bt}
	default:
		opts.USB = adapter.NewUSBDriver(cfg.USB.WriteTimeout)
		opts.Discoverers = []discovery.Discoverer{discovery.NewUSBDiscoverer(logger), bt}
	}

	logger.Named("engine").Info("engine configured",
		zap.String("usbMode", string(mode)),
		zap.String("sessionPrefix", cfg.Session.Prefix))
	return New(opts), nil
}

// Open validates req, opens a channel with the matching driver and
// registers it under a fresh session id. Validation failures never reach a
// driver.
func (e *Engine) Open(req OpenRequest) (res OpenResult, err error) {
	start := time.Now()
	transport := ""
	defer func() { e.observe("open", transport, start, err) }()

	kind, err := adapter.ParseKind(req.Transport)
	if err != nil {
		return OpenResult{}, err
	}
	transport = kind.String()

	ch, err := e.dial(kind, req)
	if err != nil {
		e.logger.Warn("open failed",
			zap.String("transport", transport),
			zap.String("code", string(adapter.CodeOf(err))),
			zap.Error(err))
		return OpenResult{}, err
	}

	s := e.registry.Insert(ch)
	if e.metrics != nil {
		e.metrics.SessionsActive.WithLabelValues(transport).Inc()
	}
	e.logger.Info("session opened",
		zap.String("sessionId", s.ID),
		zap.String("transport", transport),
		zap.String("target", s.Target))
	return OpenResult{SessionID: s.ID, Capabilities: adapter.DefaultCapabilities()}, nil
}

// dial maps every transport kind to its driver. Driver errors keep their
// code; uncoded errors become connect_failed.
func (e *Engine) dial(kind adapter.Kind, req OpenRequest) (adapter.Channel, error) {
	var (
		ch  adapter.Channel
		err error
	)
	switch kind {
	case adapter.KindWifi:
		p, perr := req.wifiParams(e.defaultPort)
		if perr != nil {
			return nil, perr
		}
		if e.wifi == nil {
			return nil, noDriver(kind)
		}
		ch, err = e.wifi.Open(p)
	case adapter.KindBluetooth:
		p, perr := req.bluetoothParams()
		if perr != nil {
			return nil, perr
		}
		if e.bluetooth == nil {
			return nil, noDriver(kind)
		}
		ch, err = e.bluetooth.Open(p)
	case adapter.KindUSB:
		p, perr := req.usbParams()
		if perr != nil {
			return nil, perr
		}
		if e.usb == nil {
			return nil, noDriver(kind)
		}
		ch, err = e.usb.Open(p)
	default:
		return nil, adapter.InvalidArgs("invalid transport %q", req.Transport)
	}

	if err != nil {
		if adapter.CodeOf(err) == "" {
			err = &adapter.Error{Code: adapter.CodeConnectFailed, Msg: "failed to open " + kind.String(), Err: err}
		}
		return nil, err
	}
	if ch == nil {
		return nil, &adapter.Error{Code: adapter.CodeConnectFailed, Msg: kind.String() + " driver returned no channel"}
	}
	return ch, nil
}

func noDriver(kind adapter.Kind) error {
	return &adapter.Error{Code: adapter.CodeConnectFailed, Msg: "no driver for " + kind.String(), Err: adapter.ErrUnsupportedPlatform}
}

// Write sends data on the session's channel. Anything short of the full
// payload is write_failed.
func (e *Engine) Write(id string, data []byte) (err error) {
	start := time.Now()
	transport := ""
	defer func() { e.observe("write", transport, start, err) }()

	s, ok := e.registry.Lookup(id)
	if !ok {
		return adapter.InvalidSession(id)
	}
	transport = s.Kind.String()

	n, werr := s.Channel.Write(data)
	switch {
	case werr != nil && adapter.CodeOf(werr) == adapter.CodeWriteFailed:
		err = werr
	case werr != nil:
		err = &adapter.Error{Code: adapter.CodeWriteFailed, Msg: "failed to send bytes over " + transport, Err: werr}
	case n < len(data):
		err = &adapter.Error{
			Code: adapter.CodeWriteFailed,
			Msg:  fmt.Sprintf("failed to send bytes over %s (%d of %d sent)", transport, n, len(data)),
			Err:  adapter.ErrShortWrite,
		}
	}

	if e.metrics != nil && n > 0 {
		e.metrics.BytesWritten.WithLabelValues(transport).Add(float64(n))
	}
	if err != nil {
		e.logger.Warn("write failed", zap.String("sessionId", id), zap.Int("written", n), zap.Error(err))
		return err
	}
	e.logger.Debug("bytes written", zap.String("sessionId", id), zap.Int("bytes", n))
	return nil
}

// ReadStatus returns the status snapshot of the session. No transport polls
// the printer, so every field is unknown.
func (e *Engine) ReadStatus(id string) (st adapter.Status, err error) {
	s, ok := e.registry.Lookup(id)
	if !ok {
		err = adapter.InvalidSession(id)
		e.count("readStatus", "", err)
		return adapter.Status{}, err
	}
	e.count("readStatus", s.Kind.String(), nil)
	return adapter.UnknownStatus(), nil
}

// GetCapabilities returns the capability descriptor of the session
func (e *Engine) GetCapabilities(id string) (adapter.Capabilities, error) {
	s, ok := e.registry.Lookup(id)
	if !ok {
		err := adapter.InvalidSession(id)
		e.count("getCapabilities", "", err)
		return adapter.Capabilities{}, err
	}
	e.count("getCapabilities", s.Kind.String(), nil)
	return adapter.DefaultCapabilities(), nil
}

// Close removes the session and releases its channel. Unknown ids are a
// successful no-op; release errors are logged, never returned.
func (e *Engine) Close(id string) error {
	s, err := e.registry.Close(id)
	if s == nil {
		e.logger.Debug("close on unknown session", zap.String("sessionId", id))
		return nil
	}
	transport := s.Kind.String()
	if err != nil {
		e.logger.Warn("channel release failed", zap.String("sessionId", id), zap.Error(err))
	}
	if e.metrics != nil {
		e.metrics.SessionsActive.WithLabelValues(transport).Dec()
	}
	e.count("close", transport, nil)
	e.logger.Info("session closed", zap.String("sessionId", id), zap.String("transport", transport))
	return nil
}

// Search runs the discoverers selected by transports. An empty or nil list
// selects all of them. The result is never nil.
func (e *Engine) Search(transports []string) []discovery.Device {
	start := time.Now()
	devices := discovery.Search(e.discoverers, transports)
	e.observe("search", "", start, nil)
	return devices
}

// observedDiscoverer records the outcome of every discovery run
type observedDiscoverer struct {
	discovery.Discoverer
	e *Engine
}

func (o observedDiscoverer) Discover() []discovery.Device {
	found := o.Discoverer.Discover()
	if o.e.metrics != nil {
		o.e.metrics.DevicesDiscovered.WithLabelValues(o.Transport()).Set(float64(len(found)))
	}
	o.e.logger.Debug("discovery finished", zap.String("transport", o.Transport()), zap.Int("devices", len(found)))
	return found
}

// Sessions returns a snapshot of the open sessions
func (e *Engine) Sessions() []session.Info {
	return e.registry.List()
}

// Shutdown closes every open session. It may be called any number of
// times; each call releases the sessions opened since the previous one.
func (e *Engine) Shutdown() {
	n, errs := e.registry.CloseAll()
	for id, err := range errs {
		e.logger.Warn("channel release failed", zap.String("sessionId", id), zap.Error(err))
	}
	if e.metrics != nil {
		e.metrics.SessionsActive.Reset()
	}
	e.logger.Info("engine shut down", zap.Int("closedSessions", n))
}

func (e *Engine) observe(op, transport string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.OperationDuration.WithLabelValues(op, transport).Observe(time.Since(start).Seconds())
	e.count(op, transport, err)
}

func (e *Engine) count(op, transport string, err error) {
	if e.metrics == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = string(adapter.CodeOf(err))
		if code == "" {
			code = "error"
		}
	}
	e.metrics.OperationTotal.WithLabelValues(op, transport, code).Inc()
}
