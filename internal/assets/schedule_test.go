package assets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testAsset(method DepreciationMethod, cost, salvage float64, years int) FixedAsset {
	return FixedAsset{
		ID:              1,
		Code:            "FA-001",
		PurchaseCost:    cost,
		SalvageValue:    salvage,
		UsefulLifeYears: years,
		Method:          method,
		PurchaseDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStraightLineOneYear(t *testing.T) {
	rows := buildSchedule(testAsset(MethodStraightLine, 1200, 0, 1))
	require.Len(t, rows, 12)
	for _, row := range rows {
		require.InDelta(t, 100, row.Amount, 0.001)
		require.Equal(t, ScheduleStatusPending, row.Status)
	}
	require.InDelta(t, 0, rows[11].BookValue, 0.001)
	require.InDelta(t, 1200, rows[11].Accumulated, 0.001)
}

func TestStraightLineRoundingRemainderInLastPeriod(t *testing.T) {
	// 1000/12 = 83.33 per month, leaving 0.37 for the final period.
	rows := buildSchedule(testAsset(MethodStraightLine, 1000, 0, 1))
	require.Len(t, rows, 12)
	require.InDelta(t, 83.33, rows[0].Amount, 0.001)
	require.InDelta(t, 83.37, rows[11].Amount, 0.001)
	require.InDelta(t, 0, rows[11].BookValue, 0.001)

	var total float64
	for _, row := range rows {
		total += row.Amount
	}
	require.InDelta(t, 1000, total, 0.001)
}

func TestStraightLineStopsAtSalvage(t *testing.T) {
	rows := buildSchedule(testAsset(MethodStraightLine, 1200, 200, 1))
	require.Len(t, rows, 12)
	require.InDelta(t, 200, rows[len(rows)-1].BookValue, 0.001)
	require.InDelta(t, 1000, rows[len(rows)-1].Accumulated, 0.001)
}

func TestDecliningBalanceNeverBelowSalvage(t *testing.T) {
	rows := buildSchedule(testAsset(MethodDecliningBalance, 10000, 1000, 3))
	require.NotEmpty(t, rows)

	prev := 10000.0
	for _, row := range rows {
		require.Greater(t, row.Amount, 0.0)
		require.Less(t, row.BookValue, prev)
		require.GreaterOrEqual(t, row.BookValue, 1000.0-0.001)
		prev = row.BookValue
	}
	require.InDelta(t, 1000, rows[len(rows)-1].BookValue, 0.001)
}

func TestDecliningBalanceAmountsDecrease(t *testing.T) {
	rows := buildSchedule(testAsset(MethodDecliningBalance, 12000, 0, 2))
	require.NotEmpty(t, rows)
	// Earlier periods carry more depreciation than later ones.
	require.Greater(t, rows[0].Amount, rows[6].Amount)
}

func TestFullyDepreciatedAssetHasNoSchedule(t *testing.T) {
	rows := buildSchedule(testAsset(MethodStraightLine, 500, 500, 5))
	require.Empty(t, rows)
}

func TestScheduleDatesAreMonthly(t *testing.T) {
	rows := buildSchedule(testAsset(MethodStraightLine, 1200, 0, 1))
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rows[0].ScheduleDate)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rows[11].ScheduleDate)
}
