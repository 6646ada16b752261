// Package wire implements the pipe-delimited text format spoken between the
// session server and its benchmark clients. Requests travel as
// "COMMAND|SESSION|PAYLOAD" and responses as "STATUS|MESSAGE"; empty fields
// are rendered as empty segments, never omitted. Decoding is total: malformed
// input maps to an explicit invalid value instead of an error.
package wire

import (
	"strings"
	"unicode/utf8"
)

// Separator delimits fields on the wire. Messages must not contain it;
// use SanitizeMessage before encoding caller-supplied text.
const Separator = "|"

// Practical size limits for a single message. Requests fit in one datagram;
// responses are read into a buffer of at most MaxResponseSize bytes.
const (
	MaxRequestSize  = 1024
	MaxResponseSize = 4096
)

// Command identifies a protocol operation. The zero value is CommandInvalid,
// which marks input that did not decode to a known command.
type Command int

const (
	CommandInvalid Command = iota
	CommandCreateSession
	CommandPing
	CommandUpdateData
	CommandCloseSession
)

// commandNames maps commands to their exact wire spelling. Lookups are
// case-sensitive in both directions.
var commandNames = map[Command]string{
	CommandCreateSession: "CREATE_SESSION",
	CommandPing:          "PING",
	CommandUpdateData:    "UPDATE_DATA",
	CommandCloseSession:  "CLOSE_SESSION",
}

var commandValues = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for c, name := range commandNames {
		m[name] = c
	}
	return m
}()

// String returns the wire spelling of the command. CommandInvalid renders as
// an empty string and therefore never round-trips to a known command.
func (c Command) String() string {
	return commandNames[c]
}

// ParseCommand maps a wire spelling to its Command. Unrecognized names,
// including the empty string, yield CommandInvalid.
func ParseCommand(name string) Command {
	return commandValues[name]
}

// Response status values. The server only ever sends OK, PONG, or ERROR;
// TIMEOUT and RESET are synthesized by clients for transport-level failures
// and never appear on the wire.
const (
	StatusOK      = "OK"
	StatusPong    = "PONG"
	StatusError   = "ERROR"
	StatusTimeout = "TIMEOUT"
	StatusReset   = "RESET"
)

// Request is a decoded client message. SessionID and Payload are empty when
// the client sent empty segments.
type Request struct {
	Command   Command
	SessionID string
	Payload   string
}

// Response is a decoded server message.
type Response struct {
	Status  string
	Message string
}

// invalidResponseFormat is returned by DecodeResponse for undecodable input.
const invalidResponseFormat = "Invalid response format"

// EncodeRequest renders a request as COMMAND|SESSION|PAYLOAD. Empty sessionID
// or payload produce empty segments so the receiver always sees three fields.
func EncodeRequest(cmd Command, sessionID, payload string) []byte {
	return []byte(cmd.String() + Separator + sessionID + Separator + payload)
}

// DecodeRequest parses a datagram into a Request. The input is split on the
// separator into at most three parts, so a payload may itself contain the
// separator. Unrecognized command names and invalid UTF-8 decode to a Request
// with CommandInvalid; DecodeRequest never fails.
func DecodeRequest(data []byte) Request {
	if !utf8.Valid(data) {
		return Request{Command: CommandInvalid}
	}
	parts := strings.SplitN(string(data), Separator, 3)
	req := Request{Command: ParseCommand(parts[0])}
	if req.Command == CommandInvalid {
		return Request{Command: CommandInvalid}
	}
	if len(parts) > 1 {
		req.SessionID = parts[1]
	}
	if len(parts) > 2 {
		req.Payload = parts[2]
	}
	return req
}

// EncodeResponse renders a response as STATUS|MESSAGE. The message must not
// contain the separator; callers sanitize untrusted text first.
func EncodeResponse(status, message string) []byte {
	return []byte(status + Separator + message)
}

// DecodeResponse parses a server reply. Only the first separator splits the
// input, so messages may contain further separators. A missing message
// decodes to the empty string; invalid UTF-8 decodes to an ERROR response
// with a fixed diagnostic rather than failing.
func DecodeResponse(data []byte) Response {
	if !utf8.Valid(data) {
		return Response{Status: StatusError, Message: invalidResponseFormat}
	}
	parts := strings.SplitN(string(data), Separator, 2)
	rsp := Response{Status: parts[0]}
	if len(parts) > 1 {
		rsp.Message = parts[1]
	}
	return rsp
}

// SanitizeMessage replaces wire separators in caller-supplied text so the
// result is safe to embed in a response message.
func SanitizeMessage(message string) string {
	return strings.ReplaceAll(message, Separator, "/")
}
