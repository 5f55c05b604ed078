package order

import "github.com/verdantlabs/storefront/internal/domain/money"

// Line is the pricing view of an order line: a unit price trusted from the
// catalog and a quantity. Client-supplied totals never enter here.
type Line struct {
	UnitPrice money.Money
	Quantity  int
}

// Pricing is the authoritative breakdown of an order's charge.
type Pricing struct {
	ItemsSubtotal  money.Money
	ShippingCost   money.Money
	DiscountAmount money.Money
	TotalAmount    money.Money
}

// Price composes the item subtotal, shipping cost, and discount into the
// final total: max(0, subtotal + shipping - discount), rounded to cents.
// It is pure; identical inputs always produce identical output, which is what
// lets the checkout preview and the order-creation path share one source of
// truth.
func Price(lines []Line, shipping, discount money.Money) Pricing {
	subtotal := money.Zero()
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.MulInt(int64(l.Quantity)))
	}
	subtotal = subtotal.Round()
	discount = discount.Round()

	total := subtotal.Add(shipping).Sub(discount).ClampZero().Round()

	return Pricing{
		ItemsSubtotal:  subtotal,
		ShippingCost:   shipping,
		DiscountAmount: discount,
		TotalAmount:    total,
	}
}
