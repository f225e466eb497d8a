package storage

import "fmt"

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

type dialect struct {
	schema       []string
	upsertCourse string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS courses (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				price BIGINT NOT NULL,
				students_count BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS orders (
				order_id VARCHAR(128) NOT NULL PRIMARY KEY,
				request_id VARCHAR(128) NOT NULL,
				user_id VARCHAR(64) NOT NULL,
				courses JSON NOT NULL,
				amount BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL,
				payment_url TEXT NOT NULL,
				payment_info JSON NOT NULL,
				created_at DATETIME(3) NOT NULL,
				updated_at DATETIME(3) NOT NULL,
				INDEX idx_orders_user_created (user_id, created_at),
				INDEX idx_orders_user_status (user_id, status)
			)`,
		},
		upsertCourse: `
			INSERT INTO courses (id, title, price, students_count) VALUES (?, ?, ?, 0)
			ON DUPLICATE KEY UPDATE title = VALUES(title), price = VALUES(price)`,
	},
	DriverSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS courses (
				id TEXT NOT NULL PRIMARY KEY,
				title TEXT NOT NULL,
				price INTEGER NOT NULL,
				students_count INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS orders (
				order_id TEXT NOT NULL PRIMARY KEY,
				request_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				courses TEXT NOT NULL,
				amount INTEGER NOT NULL,
				status TEXT NOT NULL,
				payment_url TEXT NOT NULL,
				payment_info TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders (user_id, status)`,
		},
		upsertCourse: `
			INSERT INTO courses (id, title, price, students_count) VALUES (?, ?, ?, 0)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, price = excluded.price`,
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}
