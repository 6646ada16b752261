package bench

import (
	"bufio"
	"net"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/pkg/wire"
)

// StreamClient speaks the newline-delimited command protocol over TCP. The
// connection itself is the session: session-reuse mode keeps one connection
// for the whole run, no-session mode dials per iteration.
type StreamClient struct {
	target  string
	timeout time.Duration
	conn    net.Conn
	reader  *bufio.Reader
}

// NewStreamClient prepares a client for the target. No connection is made
// until OpenSession or the first PingFresh.
func NewStreamClient(target string, timeout time.Duration) *StreamClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StreamClient{target: target, timeout: timeout}
}

// OpenSession dials the target.
func (c *StreamClient) OpenSession() apperrors.Error {
	conn, err := net.DialTimeout("tcp", c.target, c.timeout)
	if err != nil {
		return classifyNetError(err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// CloseSession drops the connection.
func (c *StreamClient) CloseSession() apperrors.Error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	if err != nil {
		return ErrRequestFailed.MsgErr("failed to close connection", err)
	}
	return nil
}

// Ping performs one round trip on the open connection.
func (c *StreamClient) Ping() (wire.Response, apperrors.Error) {
	if c.conn == nil {
		return wire.Response{}, ErrRequestFailed.Msg("no open connection")
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return wire.Response{}, ErrRequestFailed.MsgErr("failed to set deadline", err)
	}
	if _, err := c.conn.Write([]byte(wire.CommandPing.String() + "\n")); err != nil {
		return wire.Response{}, classifyNetError(err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return wire.Response{}, classifyNetError(err)
	}
	return parseStreamResponse(line)
}

// PingFresh dials, pings once, and drops the connection, timing the whole
// exchange as a single iteration.
func (c *StreamClient) PingFresh() (wire.Response, apperrors.Error) {
	if err := c.CloseSession(); err != nil {
		return wire.Response{}, err
	}
	if err := c.OpenSession(); err != nil {
		return wire.Response{}, err
	}
	defer c.CloseSession()
	return c.Ping()
}

// Close drops any open connection.
func (c *StreamClient) Close() error {
	return c.CloseSession()
}

// parseStreamResponse extracts status and message from a JSON response line.
// Responses that do not carry a status field are invalid regardless of
// whatever else they contain.
func parseStreamResponse(line []byte) (wire.Response, apperrors.Error) {
	if !gjson.ValidBytes(line) {
		return wire.Response{}, ErrInvalidResponse
	}
	status := gjson.GetBytes(line, "status")
	if !status.Exists() {
		return wire.Response{}, ErrInvalidResponse
	}
	return wire.Response{
		Status:  status.String(),
		Message: gjson.GetBytes(line, "message").String(),
	}, nil
}

var _ Client = (*StreamClient)(nil)
