package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/apanic-go/internal/infra/tlsroots"
)

// ErrNotConnected is returned when no connection has been made.
var ErrNotConnected = errors.New("not connected")

// ErrHTTPOnly is returned for operations the local socket does not offer.
var ErrHTTPOnly = errors.New("operation needs an HTTP connection")

// Connection describes how to reach an apanic-server. Socket takes
// precedence over Server when both are set.
type Connection struct {
	Server   string
	Token    string
	Socket   string
	CACert   string
	Insecure bool
	Timeout  time.Duration
}

// Transport names the transport the connection uses.
func (c *Connection) Transport() string {
	if c.Socket != "" {
		return "socket"
	}
	return "http"
}

// Manager manages the CLI's connection to a server.
type Manager struct {
	current *Connection
	client  Client
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Connect builds the client for conn and makes it current. Socket
// connections are dialled immediately so a missing server is reported here.
func (m *Manager) Connect(conn *Connection) error {
	if conn.Socket == "" && conn.Server == "" {
		return fmt.Errorf("connect: no server or socket given")
	}

	var client Client
	if conn.Socket != "" {
		sc := NewSocketClient(conn.Socket)
		if conn.Timeout > 0 {
			sc.timeout = conn.Timeout
		}
		if err := sc.Connect(); err != nil {
			return err
		}
		client = sc
	} else {
		var opts []HTTPOption
		if conn.CACert != "" {
			pool := tlsroots.NewEmptyPool()
			if err := pool.AddCertFile(conn.CACert); err != nil {
				return err
			}
			opts = append(opts, WithRootCAs(pool.ClientConfig()))
		}
		if conn.Insecure {
			opts = append(opts, WithInsecureSkipVerify())
		}
		if conn.Timeout > 0 {
			opts = append(opts, WithTimeout(conn.Timeout))
		}
		client = NewHTTPClient(conn.Server, conn.Token, opts...)
	}

	m.Disconnect()
	m.current = conn
	m.client = client
	return nil
}

// Current returns the current connection, or nil.
func (m *Manager) Current() *Connection {
	return m.current
}

// IsConnected reports whether a connection is current.
func (m *Manager) IsConnected() bool {
	return m.client != nil
}

// Client returns the current client.
func (m *Manager) Client() (Client, error) {
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// HTTP returns the current client if it is an HTTP client.
func (m *Manager) HTTP() (*HTTPClient, error) {
	if m.client == nil {
		return nil, ErrNotConnected
	}
	hc, ok := m.client.(*HTTPClient)
	if !ok {
		return nil, ErrHTTPOnly
	}
	return hc, nil
}

// Socket returns the current client if it is a socket client.
func (m *Manager) Socket() (*SocketClient, error) {
	if m.client == nil {
		return nil, ErrNotConnected
	}
	sc, ok := m.client.(*SocketClient)
	if !ok {
		return nil, fmt.Errorf("operation needs a local socket connection")
	}
	return sc, nil
}

// Disconnect closes the current client.
func (m *Manager) Disconnect() {
	if m.client != nil {
		m.client.Close()
	}
	m.current = nil
	m.client = nil
}
