package port

import (
	"context"

	"github.com/rl1809/course-checkout/internal/core/domain"
)

type PaymentGateway interface {
	// CreatePayment requests a signed pay URL. Errors wrap domain.ErrGatewayUnavailable.
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error)
}
