package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
	"github.com/nixxel-company-limited/escpos-transport/engine"
)

// MockPrinter is a mock implementation of the Printer interface for testing
type MockPrinter struct {
	mu        sync.Mutex
	open      map[string]bool
	opened    int
	writeData []byte
	openErr   error
	writeErr  error
	requests  []engine.OpenRequest
}

func (m *MockPrinter) Open(req engine.OpenRequest) (engine.OpenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.openErr != nil {
		return engine.OpenResult{}, m.openErr
	}
	if m.open == nil {
		m.open = make(map[string]bool)
	}
	m.opened++
	id := fmt.Sprintf("mock-session-%d", m.opened)
	m.open[id] = true
	return engine.OpenResult{SessionID: id, Capabilities: adapter.DefaultCapabilities()}, nil
}

func (m *MockPrinter) Write(id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if !m.open[id] {
		return adapter.InvalidSession(id)
	}
	m.writeData = append(m.writeData, data...)
	return nil
}

func (m *MockPrinter) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, id)
	return nil
}

func (m *MockPrinter) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open) > 0
}

func (m *MockPrinter) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.writeData...)
}

var wifiTarget = engine.OpenRequest{Transport: "wifi", Host: "10.0.0.5", Port: 9100}

func startAsync(t *testing.T, printer Printer) *Server {
	t.Helper()
	server := New(printer, wifiTarget, "127.0.0.1:0", nil)
	require.NoError(t, server.StartAsync())
	t.Cleanup(func() { server.Stop() })
	return server
}

func TestNewServer(t *testing.T) {
	mockPrinter := &MockPrinter{}
	address := "localhost:9100"

	server := New(mockPrinter, wifiTarget, address, nil)

	assert.NotNil(t, server)
	assert.Equal(t, address, server.Address())
	assert.False(t, server.IsRunning())
	assert.Nil(t, server.Addr())
	assert.Empty(t, server.SessionID())
}

func TestServerStartStop(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := New(mockPrinter, wifiTarget, "127.0.0.1:0", nil)

	err := server.StartAsync()
	require.NoError(t, err)
	assert.True(t, server.IsRunning())
	assert.True(t, mockPrinter.IsOpen())
	assert.Equal(t, "mock-session-1", server.SessionID())
	require.Len(t, mockPrinter.requests, 1)
	assert.Equal(t, wifiTarget, mockPrinter.requests[0])

	// Test double start
	err = server.StartAsync()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	err = server.Stop()
	require.NoError(t, err)
	assert.False(t, server.IsRunning())
	assert.False(t, mockPrinter.IsOpen())

	// Test double stop (should not error)
	err = server.Stop()
	assert.NoError(t, err)
}

func TestServerOpenFailure(t *testing.T) {
	mockPrinter := &MockPrinter{openErr: adapter.InvalidArgs("missing or invalid required field: host")}
	server := New(mockPrinter, engine.OpenRequest{Transport: "wifi"}, "127.0.0.1:0", nil)

	err := server.StartAsync()
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrInvalidParameters)
	assert.False(t, server.IsRunning())
}

func TestServerConnection(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := startAsync(t, mockPrinter)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	testData := []byte("Hello, Printer!")
	n, err := conn.Write(testData)
	require.NoError(t, err)
	assert.Equal(t, len(testData), n)

	assert.Eventually(t, func() bool {
		return string(mockPrinter.Data()) == string(testData)
	}, time.Second, 10*time.Millisecond)
}

func TestServerMultipleConnections(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := startAsync(t, mockPrinter)

	numConnections := 3
	for i := 0; i < numConnections; i++ {
		conn, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte{byte(i + 1)})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return len(mockPrinter.Data()) == numConnections
	}, time.Second, 10*time.Millisecond)
}

func TestServerWriteFailureDropsClient(t *testing.T) {
	mockPrinter := &MockPrinter{writeErr: errors.New("write_failed: broken pipe")}
	server := startAsync(t, mockPrinter)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x1b, 0x40})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.True(t, server.IsRunning())
}

func TestServerStopClosesClients(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := New(mockPrinter, wifiTarget, "127.0.0.1:0", nil)
	require.NoError(t, server.StartAsync())

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("x"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(mockPrinter.Data()) == 1 }, time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- server.Stop() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked on an open client")
	}
	assert.False(t, mockPrinter.IsOpen())
}

func TestServerWithEngine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	e := engine.New(engine.Options{
		SessionPrefix: "test",
		Wifi:          adapter.NewTCPDriver(time.Second, time.Second),
	})
	defer e.Shutdown()

	target := engine.OpenRequest{Transport: "wifi", Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	server := New(e, target, "127.0.0.1:0", nil)
	require.NoError(t, server.StartAsync())
	defer server.Stop()
	assert.Equal(t, "test-session-1", server.SessionID())

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	initCmd := []byte{0x1B, 0x40} // ESC @
	_, err = conn.Write(initCmd)
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, initCmd, data)
	case <-time.After(2 * time.Second):
		t.Fatal("printer did not receive data")
	}
}

func TestServerAddress(t *testing.T) {
	mockPrinter := &MockPrinter{}
	testCases := []string{
		"localhost:9100",
		"0.0.0.0:9100",
		":9100",
	}

	for _, addr := range testCases {
		t.Run(addr, func(t *testing.T) {
			server := New(mockPrinter, wifiTarget, addr, nil)
			assert.Equal(t, addr, server.Address())
		})
	}
}

func TestServerInvalidAddress(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := New(mockPrinter, wifiTarget, "invalid:address:9100", nil)

	err := server.StartAsync()
	assert.Error(t, err)
	assert.False(t, server.IsRunning())
	assert.False(t, mockPrinter.IsOpen())
}

func TestServerStartBlocking(t *testing.T) {
	mockPrinter := &MockPrinter{}
	server := New(mockPrinter, wifiTarget, "127.0.0.1:0", nil)

	// Start server in a goroutine since it blocks
	started := make(chan error, 1)
	go func() {
		started <- server.Start()
	}()

	require.Eventually(t, server.IsRunning, time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	testData := []byte("Blocking test")
	_, err = conn.Write(testData)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return string(mockPrinter.Data()) == string(testData)
	}, time.Second, 10*time.Millisecond)

	err = server.Stop()
	require.NoError(t, err)

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}
