// Package stock derives coverage, turnover and health indicators from the
// monthly movement history of a product.
package stock

import (
	"math"
	"sort"
	"time"
)

const (
	// windowMonths is how many recent records feed the averages
	windowMonths = 3
	daysPerMonth = 30

	atRiskBelowDays = 30
	excessAboveDays = 90
)

// Health classifies the stock coverage
type Health string

const (
	HealthUnknown Health = "N/A"
	HealthAtRisk  Health = "Em Risco"
	HealthExcess  Health = "Excesso"
	HealthHealthy Health = "Saudável"
)

// Record is one monthly movement
type Record struct {
	Date         time.Time
	SoldQuantity int
	ClosingStock int
}

// Summary holds the indicators shown on the product card
type Summary struct {
	CurrentStock      int
	CurrentMonthSales int
	LastMonthSales    int
	// CoverageDays is nil when average daily sales are zero
	CoverageDays *int
	// Turnover is nil when average sales or average stock are zero
	Turnover *float64
	Health   Health
}

// Summarize computes the card indicators. An empty history yields zeros and
// HealthUnknown.
func Summarize(history []Record) Summary {
	summary := Summary{Health: HealthUnknown}
	if len(history) == 0 {
		return summary
	}

	sorted := append([]Record(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	latest := sorted[0]
	summary.CurrentStock = latest.ClosingStock
	summary.CurrentMonthSales = latest.SoldQuantity
	if len(sorted) > 1 {
		summary.LastMonthSales = sorted[1].SoldQuantity
	}

	recent := sorted
	if len(recent) > windowMonths {
		recent = recent[:windowMonths]
	}

	var totalSales, totalClosing int
	for _, r := range recent {
		totalSales += r.SoldQuantity
		totalClosing += r.ClosingStock
	}
	avgMonthlySales := float64(totalSales) / float64(len(recent))
	avgDailySales := avgMonthlySales / daysPerMonth
	avgStock := float64(totalClosing) / float64(len(recent))

	if avgDailySales > 0 {
		coverage := int(math.Round(float64(summary.CurrentStock) / avgDailySales))
		summary.CoverageDays = &coverage
		summary.Health = classify(coverage)
	}

	if avgStock > 0 && avgMonthlySales > 0 {
		turnover := math.Round(avgMonthlySales/avgStock*100) / 100
		summary.Turnover = &turnover
	}

	return summary
}

func classify(coverageDays int) Health {
	switch {
	case coverageDays < atRiskBelowDays:
		return HealthAtRisk
	case coverageDays > excessAboveDays:
		return HealthExcess
	default:
		return HealthHealthy
	}
}
