package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rl1809/course-checkout/internal/core/domain"
)

func paidOrder() domain.Order {
	now := time.UnixMilli(1700000000000)
	order := domain.NewPendingOrder(domain.NewOrderID(now, "user-1"), "user-1",
		[]domain.CourseSnapshot{{CourseID: "A", Price: 100}, {CourseID: "B", Price: 250}}, now)
	order.Status = domain.OrderStatusPaid
	return order
}

var allEffects = domain.Effects{Enroll: true, CountStudents: true, ClearCart: true}

func TestFulfill_AllSteps(t *testing.T) {
	catalog := newMockCatalog(domain.Course{ID: "A", Price: 100}, domain.Course{ID: "B", Price: 250})
	users := newMockUserStore()
	users.carts["user-1"] = []string{"A", "B", "C"}
	svc := NewFulfillmentService(users, catalog, users, discardLogger())

	report := svc.Fulfill(context.Background(), paidOrder(), allEffects)

	assert.True(t, report.OK())
	assert.Equal(t, 2, report.NewEnrollments)
	assert.Equal(t, int64(1), catalog.students("A"))
	assert.Equal(t, int64(1), catalog.students("B"))
	assert.Empty(t, users.cart("user-1"))
}

func TestFulfill_StepsAreIndependent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *mockCatalog, u *mockUserStore)
		check func(t *testing.T, r FulfillmentReport, c *mockCatalog, u *mockUserStore)
	}{
		{
			name:  "enroll fails",
			setup: func(c *mockCatalog, u *mockUserStore) { u.enrollErr = errors.New("redis down") },
			check: func(t *testing.T, r FulfillmentReport, c *mockCatalog, u *mockUserStore) {
				assert.Error(t, r.EnrollErr)
				assert.NoError(t, r.CountErr)
				assert.NoError(t, r.CartErr)
				assert.Equal(t, int64(1), c.students("A"))
				assert.Empty(t, u.cart("user-1"))
			},
		},
		{
			name:  "count fails",
			setup: func(c *mockCatalog, u *mockUserStore) { c.incrementErr = errors.New("db down") },
			check: func(t *testing.T, r FulfillmentReport, c *mockCatalog, u *mockUserStore) {
				assert.NoError(t, r.EnrollErr)
				assert.Error(t, r.CountErr)
				assert.Equal(t, 2, r.NewEnrollments)
				assert.Empty(t, u.cart("user-1"))
			},
		},
		{
			name:  "cart fails",
			setup: func(c *mockCatalog, u *mockUserStore) { u.cartErr = errors.New("redis down") },
			check: func(t *testing.T, r FulfillmentReport, c *mockCatalog, u *mockUserStore) {
				assert.Error(t, r.CartErr)
				assert.Equal(t, 2, r.NewEnrollments)
				assert.Equal(t, int64(1), c.students("B"))
				assert.Equal(t, []string{"A"}, u.cart("user-1"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newMockCatalog(domain.Course{ID: "A", Price: 100}, domain.Course{ID: "B", Price: 250})
			users := newMockUserStore()
			users.carts["user-1"] = []string{"A"}
			tt.setup(catalog, users)
			svc := NewFulfillmentService(users, catalog, users, discardLogger())

			report := svc.Fulfill(context.Background(), paidOrder(), allEffects)
			assert.False(t, report.OK())
			tt.check(t, report, catalog, users)
		})
	}
}

func TestFulfill_EnrollIsSetUnion(t *testing.T) {
	catalog := newMockCatalog(domain.Course{ID: "A", Price: 100}, domain.Course{ID: "B", Price: 250})
	users := newMockUserStore()
	_, _ = users.Enroll(context.Background(), "user-1", []string{"A"})
	svc := NewFulfillmentService(users, catalog, users, discardLogger())

	report := svc.Fulfill(context.Background(), paidOrder(), domain.Effects{Enroll: true})
	assert.Equal(t, 1, report.NewEnrollments)

	enrolled, _ := users.EnrolledCourses(context.Background(), "user-1")
	assert.Equal(t, []string{"A", "B"}, enrolled)
	assert.Equal(t, int64(0), catalog.students("A"))
}

func TestFulfill_SurvivesCancelledCaller(t *testing.T) {
	catalog := newMockCatalog(domain.Course{ID: "A", Price: 100}, domain.Course{ID: "B", Price: 250})
	users := newMockUserStore()
	svc := NewFulfillmentService(users, catalog, users, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := svc.Fulfill(ctx, paidOrder(), allEffects)
	assert.True(t, report.OK())
}
