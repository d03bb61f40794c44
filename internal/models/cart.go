package models

// CartEntry represents one line of the customer's cart. UnitPrice is
// authoritative from the menu catalog and never accepted from the client.
type CartEntry struct {
	ID         string `json:"id"`
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  Cents  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Subtotal returns unit price times quantity for this entry.
func (e CartEntry) Subtotal() Cents {
	return e.UnitPrice.Times(e.Quantity)
}

// CartTotal sums the subtotals of all entries. The total is always
// derived; it is never stored alongside the entries.
func CartTotal(entries []CartEntry) Cents {
	var total Cents
	for _, e := range entries {
		total += e.Subtotal()
	}
	return total
}

// CartResponse is the payload of GET /customer/cart/.
type CartResponse struct {
	Items []CartEntry `json:"items"`
}

// UpdateQuantityRequest is the payload of PUT /customer/update/{id}.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}
