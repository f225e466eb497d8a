package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSignatureInvalid   = errors.New("invalid signature")
	ErrOrderNotFound      = errors.New("order not found")
	ErrAlreadySettled     = errors.New("order already settled")
)

type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindValidation         ErrorKind = "validation"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindSignatureInvalid   ErrorKind = "signature_invalid"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadySettled     ErrorKind = "already_settled"
	KindInternal           ErrorKind = "internal"
)

// KindOf classifies err into the closed set of pipeline outcomes.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrGatewayUnavailable):
		return KindGatewayUnavailable
	case errors.Is(err, ErrSignatureInvalid):
		return KindSignatureInvalid
	case errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadySettled):
		return KindAlreadySettled
	default:
		return KindInternal
	}
}
