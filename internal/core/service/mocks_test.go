package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/port"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock OrderLedger
type mockLedger struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
	getErr    error
	// beforeTransition runs outside the lock, letting tests interleave writers
	beforeTransition func()
	transitions      int
}

func newMockLedger() *mockLedger {
	return &mockLedger{orders: make(map[string]domain.Order)}
}

func (m *mockLedger) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[order.OrderID]; ok {
		return errors.New("duplicate order id")
	}
	m.orders[order.OrderID] = order
	return nil
}

func (m *mockLedger) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (m *mockLedger) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Order
	for _, o := range m.orders {
		if o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset >= total {
		return []domain.Order{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (m *mockLedger) TransitionOrder(ctx context.Context, orderID string, from, to domain.OrderStatus, info domain.PaymentInfo) error {
	if m.beforeTransition != nil {
		m.beforeTransition()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != from {
		return port.ErrStatusConflict
	}
	order.Status = to
	order.PaymentInfo = info
	m.orders[orderID] = order
	m.transitions++
	return nil
}

func (m *mockLedger) status(orderID string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Status
}

// Mock CatalogRepository
type mockCatalog struct {
	mu           sync.Mutex
	courses      map[string]domain.Course
	getErr       error
	incrementErr error
}

func newMockCatalog(courses ...domain.Course) *mockCatalog {
	m := &mockCatalog{courses: make(map[string]domain.Course)}
	for _, c := range courses {
		m.courses[c.ID] = c
	}
	return m
}

func (m *mockCatalog) GetCourses(ctx context.Context, ids []string) ([]domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []domain.Course
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCatalog) IncrementStudents(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return m.incrementErr
	}
	for _, id := range ids {
		c := m.courses[id]
		c.StudentsCount++
		m.courses[id] = c
	}
	return nil
}

func (m *mockCatalog) students(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id].StudentsCount
}

// Mock EnrollmentRepository and CartRepository
type mockUserStore struct {
	mu          sync.Mutex
	enrolled    map[string]map[string]bool
	carts       map[string][]string
	enrollErr   error
	cartErr     error
	enrollCalls int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		enrolled: make(map[string]map[string]bool),
		carts:    make(map[string][]string),
	}
}

func (m *mockUserStore) Enroll(ctx context.Context, userID string, courseIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollCalls++
	if m.enrollErr != nil {
		return 0, m.enrollErr
	}
	set, ok := m.enrolled[userID]
	if !ok {
		set = make(map[string]bool)
		m.enrolled[userID] = set
	}
	added := 0
	for _, id := range courseIDs {
		if !set[id] {
			set[id] = true
			added++
		}
	}
	return added, nil
}

func (m *mockUserStore) EnrolledCourses(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.enrolled[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockUserStore) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cartErr != nil {
		return m.cartErr
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockUserStore) cart(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[userID]
}

func (m *mockUserStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollCalls
}

// Mock PaymentGateway
type mockGateway struct {
	mu       sync.Mutex
	requests []domain.PaymentRequest
	err      error
}

func (m *mockGateway) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.PaymentResponse{
		PayURL:     "https://pay.example.com/" + req.OrderID,
		ResultCode: 0,
		Message:    "Successful.",
		Request:    []byte(`{"orderId":"` + req.OrderID + `"}`),
		Raw:        []byte(`{"resultCode":0}`),
	}, nil
}
