package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether a callback can no longer change the status.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// CallbackSource identifies which entry point settled an order.
type CallbackSource string

const (
	SourceIPN   CallbackSource = "ipn"
	SourceDev   CallbackSource = "dev"
	SourceAdmin CallbackSource = "admin"
)

// PaymentInfo is the audit trail of an order. Nothing reads it for control flow.
type PaymentInfo struct {
	Request      json.RawMessage `json:"request,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	Callback     json.RawMessage `json:"callback,omitempty"`
	Source       CallbackSource  `json:"source,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	ProcessingID string          `json:"processingId,omitempty"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
}

type Order struct {
	OrderID     string
	RequestID   string
	UserID      string
	Courses     []CourseSnapshot
	Amount      int64
	Status      OrderStatus
	PaymentURL  string
	PaymentInfo PaymentInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrderID(now time.Time, userID string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), userID)
}

// NewPendingOrder freezes the course snapshot and derives the amount from it.
func NewPendingOrder(orderID, userID string, courses []CourseSnapshot, now time.Time) Order {
	return Order{
		OrderID:   orderID,
		RequestID: orderID,
		UserID:    userID,
		Courses:   courses,
		Amount:    SumPrices(courses),
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type OrderFilter struct {
	UserID string
	Status OrderStatus // empty means any
	Offset int
	Limit  int
}
