package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UserInfo represents the authenticated user as seen by the server
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// Me returns the user the current token belongs to
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// HistoryRecord is one monthly stock movement of a product
type HistoryRecord struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	OpeningStock    int    `json:"opening_stock"`
	InboundQuantity int    `json:"inbound_quantity"`
	SoldQuantity    int    `json:"sold_quantity"`
	ClosingStock    int    `json:"closing_stock"`
}

// Product represents a product with its movement history
type Product struct {
	ID          string          `json:"id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	CreatedAt   time.Time       `json:"created_at"`
	History     []HistoryRecord `json:"history"`
}

// GetProduct fetches a product by its code
func (c *Client) GetProduct(ctx context.Context, code string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(code), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// KPIs represents the general indicators shown on the home screen
type KPIs struct {
	CurrentMonthSales float64 `json:"vendas_mes_atual"`
	SalesTarget       float64 `json:"meta_exemplo"`
	TotalProducts     int64   `json:"total_produtos"`
	Month             string  `json:"mes"`
}

// TargetPercent returns how much of the sales target was reached, 0 without a target
func (k *KPIs) TargetPercent() float64 {
	if k.SalesTarget == 0 {
		return 0
	}
	return k.CurrentMonthSales / k.SalesTarget * 100
}

// GetKPIs fetches the general KPIs
func (c *Client) GetKPIs(ctx context.Context) (*KPIs, error) {
	var kpis KPIs
	if err := c.do(ctx, http.MethodGet, "/api/kpis/gerais", nil, &kpis); err != nil {
		return nil, err
	}
	return &kpis, nil
}

// Metric selects an aggregated column
type Metric struct {
	Name  string `json:"nome"`
	Label string `json:"label,omitempty"`
}

// QueryRequest represents a dynamic analysis request
type QueryRequest struct {
	StartDate  string            `json:"data_inicial"`
	EndDate    string            `json:"data_final"`
	Dimensions []string          `json:"dimensoes"`
	Metrics    []Metric          `json:"metricas"`
	Filters    map[string]string `json:"filtros,omitempty"`
}

// QueryRow is one result row keyed by dimension and metric name
type QueryRow map[string]any

// Query runs a dynamic analysis on the server
func (c *Client) Query(ctx context.Context, req QueryRequest) ([]QueryRow, error) {
	if len(req.Dimensions) == 0 || len(req.Metrics) == 0 {
		return nil, fmt.Errorf("at least one dimension and one metric are required")
	}

	var rows []QueryRow
	if err := c.do(ctx, http.MethodPost, "/api/query", req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
