package types

// LineItem is a purchased product snapshot captured on a child order at checkout.
type LineItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// LineItems is stored as JSON on child_orders.line_items.
type LineItems []LineItem

// TotalCents sums the line totals.
func (l LineItems) TotalCents() int64 {
	var total int64
	for _, item := range l {
		total += item.TotalCents
	}
	return total
}
