package assets

import (
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// buildSchedule computes the full monthly depreciation plan for an asset.
// Amounts are computed in decimal arithmetic so the rounding remainder is
// absorbed deterministically by the final period, and book value never
// drops below salvage value.
func buildSchedule(asset FixedAsset) []DepreciationSchedule {
	cost := decimal.NewFromFloat(asset.PurchaseCost)
	salvage := decimal.NewFromFloat(asset.SalvageValue)
	depreciable := cost.Sub(salvage)
	if depreciable.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	months := asset.UsefulLifeYears * 12
	monthsDec := decimal.NewFromInt(int64(months))
	straightBase := depreciable.Div(monthsDec).Round(2)
	decliningRate := two.Div(decimal.NewFromInt(int64(asset.UsefulLifeYears))).Div(decimal.NewFromInt(12))

	book := cost
	accumulated := decimal.Zero
	rows := make([]DepreciationSchedule, 0, months)
	for i := 1; i <= months; i++ {
		var amount decimal.Decimal
		switch asset.Method {
		case MethodDecliningBalance:
			amount = book.Mul(decliningRate).Round(2)
		default:
			amount = straightBase
		}
		remaining := book.Sub(salvage)
		// The last period absorbs the rounding remainder either way.
		if i == months || amount.GreaterThanOrEqual(remaining) {
			amount = remaining
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			break
		}
		book = book.Sub(amount)
		accumulated = accumulated.Add(amount)
		rows = append(rows, DepreciationSchedule{
			AssetID:      asset.ID,
			ScheduleDate: asset.PurchaseDate.AddDate(0, i, 0),
			Amount:       amount.InexactFloat64(),
			Accumulated:  accumulated.InexactFloat64(),
			BookValue:    book.InexactFloat64(),
			Status:       ScheduleStatusPending,
		})
		if book.LessThanOrEqual(salvage) {
			break
		}
	}
	return rows
}
