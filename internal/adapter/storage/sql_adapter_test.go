package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/port"
)

type backend struct {
	name    string
	adapter *SQLAdapter
}

// getBackends always returns a SQLite ledger and adds MySQL when MYSQL_DSN
// points at a reachable server.
func getBackends(t *testing.T) []backend {
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=5000"
	sqlite, err := Open(ctx, DriverSQLite, dsn, PoolOptions{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	backends := []backend{{name: DriverSQLite, adapter: mustAdapter(t, sqlite, DriverSQLite)}}

	if mysqlDSN := os.Getenv("MYSQL_DSN"); mysqlDSN != "" {
		db, err := Open(ctx, DriverMySQL, mysqlDSN, PoolOptions{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Minute})
		if err != nil {
			t.Logf("MySQL not available: %v", err)
		} else {
			t.Cleanup(func() { db.Close() })
			backends = append(backends, backend{name: DriverMySQL, adapter: mustAdapter(t, db, DriverMySQL)})
		}
	}
	return backends
}

func mustAdapter(t *testing.T, db *sql.DB, driver string) *SQLAdapter {
	t.Helper()
	adapter, err := NewSQLAdapter(db, driver)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate %s: %v", driver, err)
	}
	return adapter
}

func testOrder(userID string, createdAt time.Time) domain.Order {
	snaps := []domain.CourseSnapshot{{CourseID: "A", Price: 100}, {CourseID: "B", Price: 250}}
	order := domain.NewPendingOrder(domain.NewOrderID(createdAt, userID), userID, snaps, createdAt)
	order.PaymentURL = "https://pay.example.com/" + order.OrderID
	order.PaymentInfo = domain.PaymentInfo{
		Request:  json.RawMessage(`{"orderId":"` + order.OrderID + `"}`),
		Response: json.RawMessage(`{"resultCode":0}`),
	}
	return order
}

func TestCreateAndGetOrder(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			order := testOrder("user-"+uuid.NewString(), time.Now().Truncate(time.Millisecond))

			if err := b.adapter.CreateOrder(ctx, order); err != nil {
				t.Fatalf("CreateOrder failed: %v", err)
			}

			got, err := b.adapter.GetOrder(ctx, order.OrderID)
			if err != nil {
				t.Fatalf("GetOrder failed: %v", err)
			}
			if got == nil {
				t.Fatal("expected order, got nil")
			}
			if got.UserID != order.UserID {
				t.Errorf("expected user %s, got %s", order.UserID, got.UserID)
			}
			if got.Amount != 350 {
				t.Errorf("expected amount 350, got %d", got.Amount)
			}
			if len(got.Courses) != 2 || got.Courses[1].CourseID != "B" || got.Courses[1].Price != 250 {
				t.Errorf("unexpected courses %+v", got.Courses)
			}
			if got.Status != domain.OrderStatusPending {
				t.Errorf("expected pending, got %s", got.Status)
			}
			if got.PaymentURL != order.PaymentURL {
				t.Errorf("expected pay url %s, got %s", order.PaymentURL, got.PaymentURL)
			}
			if !got.CreatedAt.Equal(order.CreatedAt) {
				t.Errorf("expected created_at %v, got %v", order.CreatedAt, got.CreatedAt)
			}
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			got, err := b.adapter.GetOrder(context.Background(), "missing-"+uuid.NewString())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Error("expected nil for nonexistent order")
			}
		})
	}
}

func TestCreateOrder_DuplicateID(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			order := testOrder("user-"+uuid.NewString(), time.Now())
			if err := b.adapter.CreateOrder(ctx, order); err != nil {
				t.Fatalf("CreateOrder failed: %v", err)
			}
			if err := b.adapter.CreateOrder(ctx, order); err == nil {
				t.Error("expected error for duplicate order id")
			}
		})
	}
}

func TestTransitionOrder_Conditional(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			order := testOrder("user-"+uuid.NewString(), time.Now())
			if err := b.adapter.CreateOrder(ctx, order); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			info := order.PaymentInfo
			info.Callback = json.RawMessage(`{"resultCode":0}`)
			info.Source = domain.SourceIPN

			err := b.adapter.TransitionOrder(ctx, order.OrderID, domain.OrderStatusPending, domain.OrderStatusPaid, info)
			if err != nil {
				t.Fatalf("TransitionOrder failed: %v", err)
			}

			// Stale expectation must not match
			err = b.adapter.TransitionOrder(ctx, order.OrderID, domain.OrderStatusPending, domain.OrderStatusFailed, info)
			if !errors.Is(err, port.ErrStatusConflict) {
				t.Errorf("expected ErrStatusConflict, got: %v", err)
			}

			got, _ := b.adapter.GetOrder(ctx, order.OrderID)
			if got.Status != domain.OrderStatusPaid {
				t.Errorf("expected paid, got %s", got.Status)
			}
			if got.PaymentInfo.Source != domain.SourceIPN {
				t.Errorf("expected source ipn, got %q", got.PaymentInfo.Source)
			}
			if len(got.PaymentInfo.Response) == 0 {
				t.Error("expected gateway response to survive the transition")
			}
		})
	}
}

func TestTransitionOrder_UnknownOrder(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			err := b.adapter.TransitionOrder(context.Background(), "missing-"+uuid.NewString(),
				domain.OrderStatusPending, domain.OrderStatusPaid, domain.PaymentInfo{})
			if !errors.Is(err, port.ErrStatusConflict) {
				t.Errorf("expected ErrStatusConflict, got: %v", err)
			}
		})
	}
}

func TestTransitionOrder_ConcurrentSingleWinner(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			order := testOrder("user-"+uuid.NewString(), time.Now())
			if err := b.adapter.CreateOrder(ctx, order); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			var winners atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := b.adapter.TransitionOrder(ctx, order.OrderID, domain.OrderStatusPending, domain.OrderStatusPaid, order.PaymentInfo)
					if err == nil {
						winners.Add(1)
					} else if !errors.Is(err, port.ErrStatusConflict) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if winners.Load() != 1 {
				t.Errorf("expected exactly 1 winner, got %d", winners.Load())
			}
		})
	}
}

func TestListOrders_FilterAndPage(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			userID := "user-" + uuid.NewString()
			base := time.Now().Add(-time.Hour)

			for i := 0; i < 5; i++ {
				order := testOrder(userID, base.Add(time.Duration(i)*time.Second))
				if err := b.adapter.CreateOrder(ctx, order); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
				if i%2 == 0 {
					if err := b.adapter.TransitionOrder(ctx, order.OrderID, domain.OrderStatusPending, domain.OrderStatusPaid, order.PaymentInfo); err != nil {
						t.Fatalf("setup failed: %v", err)
					}
				}
			}
			// Someone else's order
			if err := b.adapter.CreateOrder(ctx, testOrder("other-"+uuid.NewString(), base)); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			orders, total, err := b.adapter.ListOrders(ctx, domain.OrderFilter{UserID: userID, Limit: 2})
			if err != nil {
				t.Fatalf("ListOrders failed: %v", err)
			}
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
			if len(orders) != 2 {
				t.Fatalf("expected 2 orders on page, got %d", len(orders))
			}
			if !orders[0].CreatedAt.After(orders[1].CreatedAt) {
				t.Error("expected newest first")
			}

			paid, total, err := b.adapter.ListOrders(ctx, domain.OrderFilter{UserID: userID, Status: domain.OrderStatusPaid, Limit: 10})
			if err != nil {
				t.Fatalf("ListOrders failed: %v", err)
			}
			if total != 3 || len(paid) != 3 {
				t.Errorf("expected 3 paid orders, got total=%d len=%d", total, len(paid))
			}
			for _, o := range paid {
				if o.Status != domain.OrderStatusPaid || o.UserID != userID {
					t.Errorf("unexpected order in filtered page: %+v", o)
				}
			}

			last, _, err := b.adapter.ListOrders(ctx, domain.OrderFilter{UserID: userID, Limit: 2, Offset: 4})
			if err != nil {
				t.Fatalf("ListOrders failed: %v", err)
			}
			if len(last) != 1 {
				t.Errorf("expected 1 order on last page, got %d", len(last))
			}
		})
	}
}

func TestCourses_SaveGetIncrement(t *testing.T) {
	for _, b := range getBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			a := domain.Course{ID: "course-" + uuid.NewString(), Title: "Go basics", Price: 100}
			c := domain.Course{ID: "course-" + uuid.NewString(), Title: "Go advanced", Price: 250}
			for _, course := range []domain.Course{a, c} {
				if err := b.adapter.SaveCourse(ctx, course); err != nil {
					t.Fatalf("SaveCourse failed: %v", err)
				}
			}

			// Upsert changes the price but keeps the counter
			a.Price = 120
			if err := b.adapter.SaveCourse(ctx, a); err != nil {
				t.Fatalf("SaveCourse failed: %v", err)
			}

			// Duplicate ids count once
			if err := b.adapter.IncrementStudents(ctx, []string{a.ID, c.ID, a.ID}); err != nil {
				t.Fatalf("IncrementStudents failed: %v", err)
			}

			courses, err := b.adapter.GetCourses(ctx, []string{a.ID, c.ID, "missing"})
			if err != nil {
				t.Fatalf("GetCourses failed: %v", err)
			}
			if len(courses) != 2 {
				t.Fatalf("expected 2 courses, got %d", len(courses))
			}
			for _, course := range courses {
				if course.StudentsCount != 1 {
					t.Errorf("expected 1 student on %s, got %d", course.ID, course.StudentsCount)
				}
				if course.ID == a.ID && course.Price != 120 {
					t.Errorf("expected updated price 120, got %d", course.Price)
				}
			}
		})
	}
}

func TestGetCourses_Empty(t *testing.T) {
	b := getBackends(t)[0]
	courses, err := b.adapter.GetCourses(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if courses != nil {
		t.Errorf("expected nil, got %v", courses)
	}
}

func TestNewSQLAdapter_UnknownDriver(t *testing.T) {
	if _, err := NewSQLAdapter(nil, "postgres"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
