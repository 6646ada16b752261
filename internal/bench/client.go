package bench

import (
	"errors"
	"net"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/pkg/wire"
)

// Client performs protocol round trips for one benchmark run. Implementations
// are not safe for concurrent use; the harness issues requests sequentially.
type Client interface {
	// OpenSession establishes the reusable session state: a server session
	// for the datagram client, a connection for the stream client.
	OpenSession() apperrors.Error
	// CloseSession releases whatever OpenSession established.
	CloseSession() apperrors.Error
	// Ping performs one round trip against the established session.
	Ping() (wire.Response, apperrors.Error)
	// PingFresh performs one full iteration of no-session mode: re-establish
	// session state, then ping. Classification uses the returned response.
	PingFresh() (wire.Response, apperrors.Error)
	// Close releases the transport.
	Close() error
}

// newClient builds the client for the configured transport.
func newClient(cfg Config) (Client, apperrors.Error) {
	if cfg.Transport == TransportStream {
		return NewStreamClient(cfg.Target, cfg.Timeout), nil
	}
	return NewDatagramClient(cfg.Target, cfg.Timeout)
}

// DatagramClient speaks the pipe-delimited protocol over one connected UDP
// socket. Both benchmark modes share the socket; no-session mode differs only
// in re-establishing the server-side session on every iteration.
type DatagramClient struct {
	conn      *net.UDPConn
	timeout   time.Duration
	sessionID string
}

// NewDatagramClient connects a UDP socket to the target. The connected form
// is what surfaces ICMP port-unreachable as a reset on subsequent reads.
func NewDatagramClient(target string, timeout time.Duration) (*DatagramClient, apperrors.Error) {
	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, ErrConnectFailed.MsgErr("cannot resolve "+target, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, ErrConnectFailed.MsgErr("cannot open socket to "+target, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DatagramClient{conn: conn, timeout: timeout}, nil
}

// SessionID returns the session established by OpenSession, or "".
func (c *DatagramClient) SessionID() string {
	return c.sessionID
}

func (c *DatagramClient) send(cmd wire.Command, payload string) (wire.Response, apperrors.Error) {
	msg := wire.EncodeRequest(cmd, c.sessionID, payload)
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return wire.Response{}, ErrRequestFailed.MsgErr("failed to set deadline", err)
	}
	if _, err := c.conn.Write(msg); err != nil {
		return wire.Response{}, classifyNetError(err)
	}
	buf := make([]byte, wire.MaxResponseSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return wire.Response{}, classifyNetError(err)
	}
	return wire.DecodeResponse(buf[:n]), nil
}

// OpenSession issues CREATE_SESSION and stores the returned id.
func (c *DatagramClient) OpenSession() apperrors.Error {
	rsp, err := c.send(wire.CommandCreateSession, "")
	if err != nil {
		return ErrSessionSetup.Err(err)
	}
	if rsp.Status != wire.StatusOK {
		return ErrSessionSetup.Msg(rsp.Message)
	}
	c.sessionID = rsp.Message
	return nil
}

// CloseSession issues CLOSE_SESSION for the established session, if any.
func (c *DatagramClient) CloseSession() apperrors.Error {
	if c.sessionID == "" {
		return nil
	}
	rsp, err := c.send(wire.CommandCloseSession, "")
	c.sessionID = ""
	if err != nil {
		return err
	}
	if rsp.Status != wire.StatusOK {
		return ErrRequestFailed.Msg(rsp.Message)
	}
	return nil
}

// Ping performs one PING round trip with the current session id.
func (c *DatagramClient) Ping() (wire.Response, apperrors.Error) {
	return c.send(wire.CommandPing, "")
}

// PingFresh re-establishes the session and pings it. When CREATE_SESSION
// fails, its response classifies the iteration; no ping is attempted.
func (c *DatagramClient) PingFresh() (wire.Response, apperrors.Error) {
	c.sessionID = ""
	rsp, err := c.send(wire.CommandCreateSession, "")
	if err != nil {
		return rsp, err
	}
	if rsp.Status != wire.StatusOK {
		return rsp, nil
	}
	c.sessionID = rsp.Message
	return c.send(wire.CommandPing, "")
}

// Close releases the socket. Any server-side session is left to expire,
// matching the reference clients.
func (c *DatagramClient) Close() error {
	return pkgerrors.Wrap(c.conn.Close(), "failed to close datagram socket")
}

// classifyNetError maps transport failures onto the client-observed statuses:
// deadline expiry becomes TIMEOUT, refused or reset connections become RESET,
// anything else keeps the underlying text under the generic ERROR status.
func classifyNetError(err error) apperrors.Error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrReset
	}
	return ErrRequestFailed.Msg(err.Error())
}

var _ Client = (*DatagramClient)(nil)
