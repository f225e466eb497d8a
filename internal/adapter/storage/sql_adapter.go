package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/course-checkout/internal/core/domain"
	"github.com/rl1809/course-checkout/internal/port"
)

// SQLAdapter is the order ledger and course catalog. Queries stick to the
// subset of SQL shared by MySQL and SQLite; only DDL and upserts differ.
type SQLAdapter struct {
	db      *sql.DB
	dialect dialect
}

func NewSQLAdapter(db *sql.DB, driver string) (*SQLAdapter, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return &SQLAdapter{db: db, dialect: d}, nil
}

func (m *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range m.dialect.schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *SQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

const orderColumns = `order_id, request_id, user_id, courses, amount, status, payment_url, payment_info, created_at, updated_at`

func (m *SQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	courses, err := json.Marshal(order.Courses)
	if err != nil {
		return fmt.Errorf("marshal courses: %w", err)
	}
	info, err := json.Marshal(order.PaymentInfo)
	if err != nil {
		return fmt.Errorf("marshal payment info: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID, order.RequestID, order.UserID, string(courses), order.Amount,
		string(order.Status), order.PaymentURL, string(info),
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *SQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE order_id = ?`, orderID,
	)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (m *SQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	where := `WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(filter.Status))
	}

	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders `+where+`
		ORDER BY created_at DESC, order_id DESC
		LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, filter.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

// TransitionOrder is the only write path for status. The status guard in the
// WHERE clause makes concurrent callers race on the row, and exactly one wins.
func (m *SQLAdapter) TransitionOrder(ctx context.Context, orderID string, from, to domain.OrderStatus, info domain.PaymentInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal payment info: %w", err)
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_info = ?, updated_at = ?
		WHERE order_id = ? AND status = ?`,
		string(to), string(payload), time.Now().UTC(), orderID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStatusConflict
	}
	return nil
}

func (m *SQLAdapter) GetCourses(ctx context.Context, ids []string) ([]domain.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, title, price, students_count
		FROM courses WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Price, &c.StudentsCount); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (m *SQLAdapter) IncrementStudents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders, args := inClause(ids)
	_, err := m.db.ExecContext(ctx, `
		UPDATE courses SET students_count = students_count + 1
		WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return fmt.Errorf("increment students: %w", err)
	}
	return nil
}

func (m *SQLAdapter) SaveCourse(ctx context.Context, course domain.Course) error {
	_, err := m.db.ExecContext(ctx, m.dialect.upsertCourse, course.ID, course.Title, course.Price)
	if err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order   domain.Order
		status  string
		courses []byte
		info    []byte
	)
	err := row.Scan(
		&order.OrderID, &order.RequestID, &order.UserID, &courses, &order.Amount,
		&status, &order.PaymentURL, &info, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(courses, &order.Courses); err != nil {
		return nil, fmt.Errorf("decode courses of %s: %w", order.OrderID, err)
	}
	if err := json.Unmarshal(info, &order.PaymentInfo); err != nil {
		return nil, fmt.Errorf("decode payment info of %s: %w", order.OrderID, err)
	}
	return &order, nil
}

// inClause deduplicates ids and returns "?, ?, ..." with matching args.
func inClause(ids []string) (string, []any) {
	seen := make(map[string]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "), args
}
