// Package httpx provides HTTP response utilities for the diagnostic
// endpoints. It includes JSON response handling, error responses, and a
// response writer wrapper used by the middleware.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/common/logtrace"
)

// SendJsonRsp sends a JSON response with the given status code. If msg is
// already marshaled JSON it is written as-is; otherwise it is marshaled
// first. Marshal failures are reported as an application error carrying the
// request id so the failure can be correlated with the server log.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJson []byte
	switch m := msg.(type) {
	case []byte:
		if json.Valid(m) {
			msgJson = m
		}
	case string:
		if json.Valid([]byte(m)) {
			msgJson = []byte(m)
		}
	}
	if msgJson == nil {
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(msgJson); err != nil {
		log.Ctx(ctx).Err(err).Msg("unable to write response")
	}
}
