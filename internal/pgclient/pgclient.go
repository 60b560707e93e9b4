// Package pgclient reads the dataset of a legacy PostgreSQL deployment of the
// dashboard, whose schema has products, product_history and users tables.
package pgclient

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/painel-dev/painel/internal/importer"
)

// Client wraps a PostgreSQL connection
type Client struct {
	db *sql.DB
}

// NewClient creates a new PostgreSQL client
func NewClient(connectionString string) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	return &Client{db: db}, nil
}

// NewFromDB wraps an existing connection
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}

// GetVersion retrieves the PostgreSQL version string
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	return version, nil
}

const historyQuery = `
	SELECT
		p.product_code,
		p.product_name,
		h.date,
		COALESCE(h.opening_stock, 0),
		COALESCE(h.inbound_quantity, 0),
		COALESCE(h.sold_quantity, 0),
		COALESCE(h.closing_stock, 0)
	FROM product_history h
	JOIN products p ON p.id = h.product_id
	ORDER BY p.product_code, h.date
`

// Name implements importer.Source
func (c *Client) Name() string {
	return "postgres"
}

// Rows implements importer.Source with every history row of the legacy database
func (c *Client) Rows(ctx context.Context) ([]importer.Row, error) {
	rows, err := c.db.QueryContext(ctx, historyQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query product history: %w", err)
	}
	defer rows.Close()

	var out []importer.Row
	for rows.Next() {
		var r importer.Row
		if err := rows.Scan(
			&r.ProductCode,
			&r.ProductName,
			&r.Date,
			&r.OpeningStock,
			&r.InboundQuantity,
			&r.SoldQuantity,
			&r.ClosingStock,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return out, nil
}

// LegacyUser is an account of the legacy deployment. PasswordHash is bcrypt.
type LegacyUser struct {
	Username     string
	PasswordHash string
	IsActive     bool
}

// Users returns the accounts of the legacy database
func (c *Client) Users(ctx context.Context) ([]LegacyUser, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT username, hashed_password, COALESCE(is_active, true) FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []LegacyUser
	for rows.Next() {
		var u LegacyUser
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}
