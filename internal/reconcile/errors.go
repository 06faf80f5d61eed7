package reconcile

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"payment-reconciler/internal/gateway"
	"payment-reconciler/internal/model"
)

var (
	ErrCustomerNotFound  = errors.New("no gateway customer with event payments")
	ErrAmbiguousCustomer = errors.New("tax id maps to more than one gateway customer with event payments")
	ErrMissingTaxID      = errors.New("gateway customer has no tax id")
)

// ErrorKind names the failure class of err for logs and reports.
func ErrorKind(err error) string {
	var statusErr *gateway.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gateway.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, gateway.ErrProtocol):
		return "ProtocolError"
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, ErrCustomerNotFound), errors.Is(err, model.ErrRegistrationNotFound):
		return "NotFound"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HttpStatus(%d)", statusErr.Code)
	case errors.Is(err, gateway.ErrNetwork):
		return "NetworkError"
	case errors.Is(err, model.ErrWriteConflict):
		return "WriteConflict"
	case errors.Is(err, ErrAmbiguousCustomer):
		return "AmbiguousCustomer"
	case errors.Is(err, ErrMissingTaxID):
		return "MissingTaxID"
	default:
		return "Unexpected"
	}
}
