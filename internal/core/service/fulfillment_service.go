package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/port"
)

const fulfillmentStepTimeout = 5 * time.Second

// FulfillmentReport records the outcome of each independent step.
// A nil error on a step that was not requested means it did not run.
type FulfillmentReport struct {
	NewEnrollments int   `json:"newEnrollments"`
	EnrollErr      error `json:"-"`
	CountErr       error `json:"-"`
	CartErr        error `json:"-"`
}

func (r FulfillmentReport) OK() bool {
	return r.EnrollErr == nil && r.CountErr == nil && r.CartErr == nil
}

type FulfillmentService struct {
	enrollments port.EnrollmentRepository
	catalog     port.CatalogRepository
	cart        port.CartRepository
	logger      *slog.Logger
}

func NewFulfillmentService(enrollments port.EnrollmentRepository, catalog port.CatalogRepository, cart port.CartRepository, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		enrollments: enrollments,
		catalog:     catalog,
		cart:        cart,
		logger:      logger,
	}
}

// Fulfill runs the requested effects for a freshly paid order. Steps do not
// roll each other back and never touch the order status; a failed step is
// logged with enough context to replay it by hand.
func (f *FulfillmentService) Fulfill(ctx context.Context, order domain.Order, effects domain.Effects) FulfillmentReport {
	// Callers may hang up once the order is paid; the projection still has to land.
	ctx = context.WithoutCancel(ctx)
	courseIDs := domain.CourseIDs(order.Courses)
	log := f.logger.With(
		slog.String("order_id", order.OrderID),
		slog.String("user_id", order.UserID),
		slog.Any("course_ids", courseIDs),
	)

	var report FulfillmentReport

	if effects.Enroll {
		report.NewEnrollments, report.EnrollErr = runStep(ctx, func(ctx context.Context) (int, error) {
			return f.enrollments.Enroll(ctx, order.UserID, courseIDs)
		})
		if report.EnrollErr != nil {
			log.Error("fulfillment step failed", slog.String("step", "enroll"), slog.Any("error", report.EnrollErr))
		}
	}

	if effects.CountStudents {
		_, report.CountErr = runStep(ctx, func(ctx context.Context) (int, error) {
			return 0, f.catalog.IncrementStudents(ctx, courseIDs)
		})
		if report.CountErr != nil {
			log.Error("fulfillment step failed", slog.String("step", "count_students"), slog.Any("error", report.CountErr))
		}
	}

	if effects.ClearCart {
		_, report.CartErr = runStep(ctx, func(ctx context.Context) (int, error) {
			return 0, f.cart.ClearCart(ctx, order.UserID)
		})
		if report.CartErr != nil {
			log.Warn("fulfillment step failed", slog.String("step", "clear_cart"), slog.Any("error", report.CartErr))
		}
	}

	if report.OK() {
		log.Info("order fulfilled", slog.Int("new_enrollments", report.NewEnrollments))
	}
	return report
}

func runStep(ctx context.Context, step func(ctx context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, fulfillmentStepTimeout)
	defer cancel()
	return step(ctx)
}
