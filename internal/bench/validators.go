package bench

import (
	"net"

	"github.com/go-playground/validator/v10"
)

// hostPortValidator checks that the target splits into a host and a port.
func hostPortValidator(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	return host != "" && port != ""
}

// transportValidator checks for a known transport. The empty value is
// accepted and defaults to datagram.
func transportValidator(fl validator.FieldLevel) bool {
	switch Transport(fl.Field().String()) {
	case "", TransportDatagram, TransportStream:
		return true
	}
	return false
}

func init() {
	V().RegisterValidation("hostport", hostPortValidator)
	V().RegisterValidation("transport", transportValidator)
}
