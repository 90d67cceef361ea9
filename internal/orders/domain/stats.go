package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StatsWindow is the trailing window covered by the daily rollup.
const StatsWindow = 7 * 24 * time.Hour

// StatusStats aggregates orders sharing a status.
type StatusStats struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DailyStats aggregates orders placed on one calendar day (UTC).
type DailyStats struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// OrderStats is the admin dashboard summary.
type OrderStats struct {
	ByStatus     map[OrderStatus]StatusStats `json:"by_status"`
	TotalOrders  int                         `json:"total_orders"`
	TotalRevenue decimal.Decimal             `json:"total_revenue"`
	Daily        []DailyStats                `json:"daily_orders"`
}

// StatusRow is one per-status aggregate as read from storage.
type StatusRow struct {
	Status OrderStatus
	Count  int
	Amount decimal.Decimal
}

// DayRow is one per-day aggregate as read from storage.
type DayRow struct {
	Day    time.Time
	Count  int
	Amount decimal.Decimal
}

// BuildStats folds storage aggregates into OrderStats. Cancelled orders are
// excluded from revenue; total revenue counts delivered orders only.
func BuildStats(statuses []StatusRow, days []DayRow) OrderStats {
	stats := OrderStats{
		ByStatus:     make(map[OrderStatus]StatusStats, len(statuses)),
		TotalRevenue: decimal.Zero,
		Daily:        make([]DailyStats, 0, len(days)),
	}
	for _, row := range statuses {
		revenue := row.Amount
		if row.Status == StatusCancelled {
			revenue = decimal.Zero
		}
		s := stats.ByStatus[row.Status]
		s.Count += row.Count
		s.Revenue = s.Revenue.Add(revenue)
		stats.ByStatus[row.Status] = s
		stats.TotalOrders += row.Count
		if row.Status == StatusDelivered {
			stats.TotalRevenue = stats.TotalRevenue.Add(row.Amount)
		}
	}

	byDay := make(map[string]*DailyStats)
	for _, row := range days {
		key := row.Day.UTC().Format(time.DateOnly)
		d, ok := byDay[key]
		if !ok {
			d = &DailyStats{Date: key, Revenue: decimal.Zero}
			byDay[key] = d
		}
		d.Count += row.Count
		d.Revenue = d.Revenue.Add(row.Amount)
	}
	for _, d := range byDay {
		stats.Daily = append(stats.Daily, *d)
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date < stats.Daily[j].Date })
	return stats
}
