package port

import (
	"context"
	"errors"

	"github.com/rl1809/course-checkout/internal/core/domain"
)

type OrderLedger interface {
	// CreateOrder persists a new order row
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns nil, nil when the order does not exist
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns one page of orders plus the total matching count
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)

	// TransitionOrder moves an order from one status to another in a single
	// conditional update. It fails with a status conflict when the order is
	// no longer in the expected status.
	TransitionOrder(ctx context.Context, orderID string, from, to domain.OrderStatus, info domain.PaymentInfo) error
}

type CatalogRepository interface {
	// GetCourses returns the courses that exist among ids, in no particular order
	GetCourses(ctx context.Context, ids []string) ([]domain.Course, error)

	// IncrementStudents adds one student to every course in ids
	IncrementStudents(ctx context.Context, ids []string) error
}

// ErrStatusConflict is returned by TransitionOrder when the conditional
// update matched no row in the expected status.
var ErrStatusConflict = errors.New("order status conflict")
