package order

import "fmt"

// Key schema for the persisted store. The Order Store is the only component
// that touches these keys directly.
const (
	KeyTableCount      = "tableCount"
	KeyMenus           = "menus"
	KeyHistory         = "history"
	KeyKitchenDone     = "completedKitchenIds"
	KeyTotalRevenue    = "totalRevenue"
	KeyTotalOrderCount = "totalOrderCount"
	KeyOrderIDHWM      = "orderIdHWM" // id allocator high-water mark
	KeyEventSeq        = "eventSeq"   // changelog sequence high-water mark
)

// DefaultTableCount applies when settings have not published a table count.
const DefaultTableCount = 8

// CartKey is the active cart for one table.
func CartKey(tableID int) string { return fmt.Sprintf("cart:%d", tableID) }

// TableBufferKey holds the orders completed at a table since it last closed.
func TableBufferKey(tableID int) string { return fmt.Sprintf("tableBuffer:%d", tableID) }
