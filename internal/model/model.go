package model

import "fmt"

// Menu is reference data owned by the settings screen; the core reads it only.
type Menu struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// CartItem is one line of a table's active cart. Quantity is always >= 1;
// a decrement that would reach 0 removes the line instead.
type CartItem struct {
	MenuID   int    `json:"menuId"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

// OrderLine is a flattened item inside a completed order.
type OrderLine struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// CompletedOrder is a history record. Immutable once written.
type CompletedOrder struct {
	ID         int64       `json:"id"`
	TableID    int         `json:"tableId"`
	TableName  string      `json:"tableName"`
	Items      []OrderLine `json:"items"`
	OrderTime  string      `json:"orderTime"` // HH:MM at checkout
	TotalPrice int64       `json:"totalPrice"`
}

// OrderStatus is the lifecycle position of a history record.
type OrderStatus int

const (
	StatusUnknown OrderStatus = iota // no such order in history
	StatusPending                    // checked out, kitchen not done
	StatusCooked                     // kitchen marked complete
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCooked:
		return "cooked"
	default:
		return "unknown"
	}
}

// TableName renders the display name for a table id.
func TableName(tableID int) string {
	return fmt.Sprintf("Table %d", tableID)
}

// CartTotal sums price*quantity over the cart.
func CartTotal(items []CartItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * it.Quantity
	}
	return total
}
