package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrTimeout  = errors.New("gateway timeout")
	ErrNetwork  = errors.New("gateway network error")
	ErrProtocol = errors.New("gateway protocol error")
	ErrNotFound = errors.New("gateway resource not found")
)

// StatusError is a non-2xx answer from the gateway.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gateway returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("gateway returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Detail)
}

// Is makes a 404 match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// classifyTransportError maps an http.Client failure onto ErrTimeout or ErrNetwork.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return errors.Wrap(ErrNetwork, err.Error())
}
