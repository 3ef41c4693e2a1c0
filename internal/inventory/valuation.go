// Package inventory values housing-unit inventory and moves items between
// units, storage and scrap.
package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/pamana/internal/ir"
)

var one = decimal.NewFromInt(1)

// Value recomputes an item's amount and net book value from its
// acquisition cost, useful life and quantity:
//
//	amount         = cost * quantity
//	net_book_value = max(0, cost * (1 - 1/useful_life)) * quantity
//
// A useful life of zero or less yields a net book value of zero. Both are
// rounded to centavos.
func Value(it *ir.InventoryItem) {
	qty := decimal.NewFromInt(int64(it.Quantity))
	it.Amount = it.AcquisitionCost.Mul(qty).Round(2)
	if it.UsefulLife <= 0 {
		it.NetBookValue = decimal.Zero
		return
	}
	life := decimal.NewFromInt(int64(it.UsefulLife))
	perUnit := it.AcquisitionCost.Mul(one.Sub(one.Div(life)))
	if perUnit.IsNegative() {
		perUnit = decimal.Zero
	}
	it.NetBookValue = perUnit.Mul(qty).Round(2)
}

// UnitNBV is the net book value of one piece of an item; zero when the
// item has no pieces left.
func UnitNBV(it *ir.InventoryItem) decimal.Decimal {
	if it.Quantity <= 0 {
		return decimal.Zero
	}
	return it.NetBookValue.Div(decimal.NewFromInt(int64(it.Quantity)))
}
