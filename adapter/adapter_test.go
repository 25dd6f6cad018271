package adapter

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkWriter accepts at most limit bytes per call and fails after budget bytes.
type chunkWriter struct {
	limit  int
	budget int
	got    []byte
	stall  bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.stall {
		return 0, nil
	}
	if w.budget <= 0 {
		return 0, errors.New("broken pipe")
	}
	n := len(p)
	if n > w.limit {
		n = w.limit
	}
	if n > w.budget {
		n = w.budget
	}
	w.budget -= n
	w.got = append(w.got, p[:n]...)
	return n, nil
}

func TestWriteFull(t *testing.T) {
	data := []byte("0123456789")

	t.Run("LoopsUntilDone", func(t *testing.T) {
		w := &chunkWriter{limit: 3, budget: 100}
		n, err := writeFull(w, data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, data, w.got)
	})

	t.Run("HardError", func(t *testing.T) {
		w := &chunkWriter{limit: 3, budget: 4}
		n, err := sendAll(w, data, "test")
		assert.Equal(t, 4, n)
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.Contains(t, err.Error(), "4 of 10")
	})

	t.Run("NoProgress", func(t *testing.T) {
		w := &chunkWriter{stall: true}
		_, err := sendAll(w, data, "test")
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})

	t.Run("Empty", func(t *testing.T) {
		n, err := writeFull(&chunkWriter{}, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestErrorCodes(t *testing.T) {
	err := connectFailed("failed to connect", errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.NotErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, CodeConnectFailed, CodeOf(err))
	assert.Equal(t, "connect_failed: failed to connect: connection refused", err.Error())

	wrapped := fmt.Errorf("open: %w", InvalidSession("linux-session-9"))
	assert.ErrorIs(t, wrapped, ErrInvalidSession)
	assert.Equal(t, CodeInvalidSession, CodeOf(wrapped))

	nf := connectFailed("usb", ErrDeviceNotFound)
	assert.ErrorIs(t, nf, ErrDeviceNotFound)
	assert.NotErrorIs(t, nf, ErrNoBulkOutEndpoint)

	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "invalid_args", ErrInvalidParameters.Error())
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{"wifi": KindWifi, "Bluetooth": KindBluetooth, " usb ": KindUSB} {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("serial")
	assert.ErrorIs(t, err, ErrInvalidParameters)
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestDefaults(t *testing.T) {
	caps := DefaultCapabilities()
	assert.False(t, caps.SupportsRealtimeStatus)
	assert.True(t, caps.SupportsPartialCut && caps.SupportsFullCut && caps.SupportsDrawerKick &&
		caps.SupportsQrCode && caps.SupportsBarcode && caps.SupportsImage)

	st := UnknownStatus()
	for _, v := range []TriState{st.PaperOut, st.PaperNearEnd, st.CoverOpen, st.CutterError, st.Offline, st.DrawerSignal} {
		assert.Equal(t, Unknown, v)
	}
}

type fixedResolver struct {
	port string
	err  error
}

func (r fixedResolver) ResolvePort(vid, pid uint16) (string, error) { return r.port, r.err }

func TestSerialDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyUSB0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	t.Run("Resolved", func(t *testing.T) {
		d := NewSerialDriver(fixedResolver{port: path})
		ch, err := d.Open(USBParams{VendorID: 0x0416, ProductID: 0x5011})
		require.NoError(t, err)
		assert.Equal(t, KindUSB, ch.Kind())

		_, err = ch.Write([]byte{0x1B, 0x40})
		require.NoError(t, err)
		require.NoError(t, ch.Close())
		assert.NoError(t, ch.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x1B, 0x40}, data)
	})

	t.Run("ExplicitPort", func(t *testing.T) {
		d := NewSerialDriver(fixedResolver{err: ErrPortNotFound})
		ch, err := d.Open(USBParams{SerialPort: path})
		require.NoError(t, err)
		assert.Equal(t, path, ch.(*SerialChannel).Path())
		ch.Close()
	})

	t.Run("NotResolved", func(t *testing.T) {
		d := NewSerialDriver(fixedResolver{err: ErrPortNotFound})
		_, err := d.Open(USBParams{VendorID: 1, ProductID: 2})
		assert.ErrorIs(t, err, ErrConnectFailed)
		assert.ErrorIs(t, err, ErrPortNotFound)
	})

	t.Run("NoResolver", func(t *testing.T) {
		_, err := NewSerialDriver(nil).Open(USBParams{VendorID: 1, ProductID: 2})
		assert.ErrorIs(t, err, ErrConnectFailed)
	})

	t.Run("MissingPort", func(t *testing.T) {
		_, err := OpenSerialPort(filepath.Join(t.TempDir(), "missing"))
		assert.ErrorIs(t, err, ErrConnectFailed)
	})
}

func TestNormalizePortPath(t *testing.T) {
	assert.Equal(t, `\\.\COM3`, NormalizePortPath("windows", "COM3"))
	assert.Equal(t, `\\.\COM12`, NormalizePortPath("windows", `\\.\COM12`))
	assert.Equal(t, `\\.\com4`, NormalizePortPath("windows", "com4"))
	assert.Equal(t, `C:\spool\out.bin`, NormalizePortPath("windows", `C:\spool\out.bin`))
	assert.Equal(t, "COM3", NormalizePortPath("linux", "COM3"))
	assert.Equal(t, "/dev/ttyUSB0", NormalizePortPath("linux", "/dev/ttyUSB0"))
}

func TestTarget(t *testing.T) {
	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	assert.Equal(t, "pipe", Target(&TCPChannel{conn: client}))
	assert.Equal(t, "00:11:22:33:44:55", Target(&BluetoothChannel{address: "00:11:22:33:44:55"}))
	assert.Equal(t, "/dev/ttyUSB0", Target(&SerialChannel{path: "/dev/ttyUSB0"}))
	assert.Equal(t, "interface 1 alt 0 endpoint 0x02",
		Target(&USBChannel{endpoint: BulkOutEndpoint{Interface: 1, Address: 0x02}}))
	assert.Empty(t, Target(nil))
}
