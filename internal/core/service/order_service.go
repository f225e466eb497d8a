package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/port"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type CheckoutResult struct {
	OrderID    string                  `json:"orderId"`
	Amount     int64                   `json:"amount"`
	Courses    []domain.CourseSnapshot `json:"courses"`
	PaymentURL string                  `json:"paymentUrl"`
}

type OrderPage struct {
	Orders     []domain.Order
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

type OrderService struct {
	ledger      port.OrderLedger
	catalog     port.CatalogRepository
	gateway     port.PaymentGateway
	redirectURL string
	logger      *slog.Logger
	now         func() time.Time
}

func NewOrderService(ledger port.OrderLedger, catalog port.CatalogRepository, gateway port.PaymentGateway, redirectURL string, logger *slog.Logger) *OrderService {
	return &OrderService{
		ledger:      ledger,
		catalog:     catalog,
		gateway:     gateway,
		redirectURL: redirectURL,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateOrder prices the courses from the live catalog, freezes that snapshot
// into a pending order and returns the gateway pay URL.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, courseIDs []string) (*CheckoutResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrValidation)
	}
	ids, err := normalizeCourseIDs(courseIDs)
	if err != nil {
		return nil, err
	}

	courses, err := s.catalog.GetCourses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	byID := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	ordered := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: course %s not found", domain.ErrValidation, id)
		}
		ordered = append(ordered, c)
	}

	now := s.now()
	order := domain.NewPendingOrder(domain.NewOrderID(now, userID), userID, domain.Snapshot(ordered), now)
	log := s.logger.With(slog.String("order_id", order.OrderID), slog.String("user_id", userID))

	payment, err := s.gateway.CreatePayment(ctx, domain.PaymentRequest{
		OrderID:     order.OrderID,
		RequestID:   order.RequestID,
		Amount:      order.Amount,
		OrderInfo:   "Payment for order " + order.OrderID,
		RedirectURL: s.redirectURL,
	})
	if err != nil {
		log.Error("create payment failed", slog.Any("error", err))
		return nil, fmt.Errorf("create payment for %s: %w", order.OrderID, err)
	}

	order.PaymentURL = payment.PayURL
	order.PaymentInfo = domain.PaymentInfo{Request: payment.Request, Response: payment.Raw}

	// The buyer can still pay without the row, so a ledger failure is
	// reported loudly but does not fail checkout.
	if err := s.ledger.CreateOrder(ctx, order); err != nil {
		log.Error("order not recorded after payment was created",
			slog.String("alert", "orphaned_payment"),
			slog.String("pay_url", payment.PayURL),
			slog.Int64("amount", order.Amount),
			slog.Any("error", err),
		)
	} else {
		log.Info("order created", slog.Int64("amount", order.Amount), slog.Int("courses", len(order.Courses)))
	}

	return &CheckoutResult{
		OrderID:    order.OrderID,
		Amount:     order.Amount,
		Courses:    order.Courses,
		PaymentURL: order.PaymentURL,
	}, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, status domain.OrderStatus, page, limit int) (*OrderPage, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page-1 > math.MaxInt32/limit {
		return nil, fmt.Errorf("%w: page %d is out of range", domain.ErrValidation, page)
	}

	orders, total, err := s.ledger.ListOrders(ctx, domain.OrderFilter{
		UserID: userID,
		Status: status,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// GetOrder hides other users' orders behind not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}

func normalizeCourseIDs(courseIDs []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return nil, fmt.Errorf("%w: courseIds must not be empty", domain.ErrValidation)
	}
	seen := make(map[string]struct{}, len(courseIDs))
	ids := make([]string, 0, len(courseIDs))
	for _, raw := range courseIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: courseIds must not contain blanks", domain.ErrValidation)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
