package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// queryDimensions maps the dimensions a query may group by to SQL
var queryDimensions = map[string]string{
	"product_code": "p.product_code",
	"product_name": "p.product_name",
	"year":         "substr(h.date, 1, 4)",
	"month":        "substr(h.date, 1, 7)",
	"date":         "substr(h.date, 1, 10)",
}

// queryMetrics maps the metrics a query may aggregate to SQL
var queryMetrics = map[string]string{
	"sold_quantity":    "SUM(h.sold_quantity)",
	"inbound_quantity": "SUM(h.inbound_quantity)",
	"opening_stock":    "SUM(h.opening_stock)",
	"closing_stock":    "SUM(h.closing_stock)",
	"records":          "COUNT(*)",
}

// Query is a dynamic analysis over the movement history. Start and End are
// inclusive calendar days.
type Query struct {
	Start      time.Time
	End        time.Time
	Dimensions []string
	Metrics    []string
	Filters    map[string]string
}

// Row is one aggregated result keyed by dimension and metric name
type Row map[string]interface{}

// Query runs q. Only whitelisted dimensions and metrics reach the SQL.
func (s *Service) Query(ctx context.Context, q Query) ([]Row, error) {
	if len(q.Dimensions) == 0 || len(q.Metrics) == 0 {
		return nil, fmt.Errorf("%w: at least one dimension and one metric are required", ErrInvalidQuery)
	}
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("%w: end date is before start date", ErrInvalidQuery)
	}

	var selects, groups []string
	for _, d := range q.Dimensions {
		expr, ok := queryDimensions[d]
		if !ok {
			return nil, fmt.Errorf("%w: unknown dimension '%s'", ErrInvalidQuery, d)
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expr, d))
		groups = append(groups, expr)
	}
	for _, m := range q.Metrics {
		expr, ok := queryMetrics[m]
		if !ok {
			return nil, fmt.Errorf("%w: unknown metric '%s'", ErrInvalidQuery, m)
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expr, m))
	}

	tx := s.db.WithContext(ctx).
		Table("product_history AS h").
		Joins("JOIN products AS p ON p.id = h.product_id").
		Select(strings.Join(selects, ", ")).
		Where("h.date >= ? AND h.date < ?", dayStart(q.Start), dayStart(q.End).AddDate(0, 0, 1))

	for key, value := range q.Filters {
		if strings.TrimSpace(value) == "" {
			continue
		}
		expr, ok := queryDimensions[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown filter '%s'", ErrInvalidQuery, key)
		}
		tx = tx.Where(expr+" = ?", value)
	}

	group := strings.Join(groups, ", ")
	var rows []map[string]interface{}
	if err := tx.Group(group).Order(group).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}

	result := make([]Row, len(rows))
	for i, r := range rows {
		result[i] = Row(r)
	}

	s.logger.Debug().
		Strs("dimensions", q.Dimensions).
		Strs("metrics", q.Metrics).
		Int("rows", len(result)).
		Msg("Query executed")

	return result, nil
}

// dayStart truncates t to UTC midnight, the form history dates are stored in
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsDimension reports whether name can be used as a dimension or filter
func IsDimension(name string) bool {
	_, ok := queryDimensions[name]
	return ok
}

// IsMetric reports whether name can be used as a metric
func IsMetric(name string) bool {
	_, ok := queryMetrics[name]
	return ok
}
