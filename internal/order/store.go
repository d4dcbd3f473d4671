package order

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"hallpos/internal/changelog"
	"hallpos/internal/codec"
	"hallpos/internal/kv"
	"hallpos/internal/metrics"
	"hallpos/internal/model"
)

// ErrEmptyCart rejects a checkout on a cart with no items.
var ErrEmptyCart = errors.New("checkout on empty cart")

// Now returns the current time. Split for testability.
var Now = func() time.Time { return time.Now() }

// Store owns the order lifecycle: per-table carts, the permanent history,
// the kitchen completion set and the revenue/order-count aggregates. All
// persisted keys go through here, so the invariants are checked at a single
// chokepoint. clog and mreg may be nil.
type Store struct {
	mu   sync.Mutex
	kv   kv.Store
	clog changelog.Writer
	mreg *metrics.Registry
}

func New(st kv.Store, clog changelog.Writer, mreg *metrics.Registry) *Store {
	return &Store{kv: st, clog: clog, mreg: mreg}
}

// AddToCart merges the menu into the table's cart: an existing line for the
// same menu id gains quantity 1, otherwise a new line is appended with the
// menu's current name and price.
func (s *Store) AddToCart(tableID int, m model.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := decodeList[model.CartItem](s, CartKey(tableID))
	found := false
	for i := range items {
		if items[i].MenuID == m.ID {
			items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		items = append(items, model.CartItem{MenuID: m.ID, Name: m.Name, Quantity: 1, Price: m.Price})
	}
	return s.writeJSON(CartKey(tableID), items)
}

// ChangeQuantity adds delta to the matching cart line; a result <= 0 removes
// the line. No-op if the line is absent.
func (s *Store) ChangeQuantity(tableID, menuID int, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := decodeList[model.CartItem](s, CartKey(tableID))
	out := items[:0]
	changed := false
	for _, it := range items {
		if it.MenuID == menuID {
			changed = true
			it.Quantity += delta
			if it.Quantity <= 0 {
				continue
			}
		}
		out = append(out, it)
	}
	if !changed {
		return nil
	}
	return s.writeJSON(CartKey(tableID), out)
}

// Checkout converts the table's cart into a permanent history record,
// updates the aggregates and the table's completed buffer, and clears the
// cart. History is written first so a mid-operation failure never loses a
// paid order.
func (s *Store) Checkout(tableID int) (model.CompletedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := decodeList[model.CartItem](s, CartKey(tableID))
	if len(items) == 0 {
		return model.CompletedOrder{}, ErrEmptyCart
	}

	now := Now()
	lines := make([]model.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.OrderLine{ID: it.MenuID, Name: it.Name, Quantity: it.Quantity})
	}
	ord := model.CompletedOrder{
		ID:         s.nextOrderID(now),
		TableID:    tableID,
		TableName:  model.TableName(tableID),
		Items:      lines,
		OrderTime:  now.Format("15:04"),
		TotalPrice: model.CartTotal(items),
	}

	history := decodeList[model.CompletedOrder](s, KeyHistory)
	if err := s.writeJSON(KeyHistory, append(history, ord)); err != nil {
		return model.CompletedOrder{}, fmt.Errorf("write history: %w", err)
	}
	buffer := decodeList[model.CompletedOrder](s, TableBufferKey(tableID))
	if err := s.writeJSON(TableBufferKey(tableID), append(buffer, ord)); err != nil {
		return model.CompletedOrder{}, fmt.Errorf("write table buffer: %w", err)
	}
	if err := s.writeInt(KeyTotalRevenue, s.readInt(KeyTotalRevenue)+ord.TotalPrice); err != nil {
		return model.CompletedOrder{}, fmt.Errorf("write revenue: %w", err)
	}
	if err := s.writeInt(KeyTotalOrderCount, s.readInt(KeyTotalOrderCount)+1); err != nil {
		return model.CompletedOrder{}, fmt.Errorf("write order count: %w", err)
	}
	if err := s.kv.Remove(CartKey(tableID)); err != nil {
		return model.CompletedOrder{}, fmt.Errorf("clear cart: %w", err)
	}

	if s.mreg != nil {
		s.mreg.Checkouts.Inc()
		s.mreg.Revenue.Add(float64(ord.TotalPrice))
	}
	s.appendEvent(changelog.Event{
		Type: changelog.TypeOrderCreated, TableID: tableID,
		OrderID: ord.ID, TS: now.UnixMilli(), Order: &ord,
	})
	return ord, nil
}

// MarkKitchenComplete records a history record as cooked. Idempotent; an
// unknown order id is tolerated as a no-op. Reports whether the set changed.
func (s *Store) MarkKitchenComplete(orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.kitchenDone()
	if done[orderID] {
		return false, nil
	}
	if s.findOrder(orderID) == nil {
		// kitchen view only presents ids sourced from history; stale ids
		// after a restore are dropped rather than treated as fatal
		return false, nil
	}
	done[orderID] = true
	if err := s.writeIDSet(done); err != nil {
		return false, err
	}
	if s.mreg != nil {
		s.mreg.KitchenCompleted.Inc()
	}
	s.appendEvent(changelog.Event{
		Type: changelog.TypeKitchenComplete, OrderID: orderID, TS: Now().UnixMilli(),
	})
	return true, nil
}

// CloseTable resets the table's transient state: active cart and completed
// buffer. History, the kitchen set and the aggregates are untouched.
func (s *Store) CloseTable(tableID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(CartKey(tableID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if err := s.kv.Remove(TableBufferKey(tableID)); err != nil {
		return fmt.Errorf("clear table buffer: %w", err)
	}
	if s.mreg != nil {
		s.mreg.TablesClosed.Inc()
	}
	s.appendEvent(changelog.Event{
		Type: changelog.TypeTableClosed, TableID: tableID, TS: Now().UnixMilli(),
	})
	return nil
}

// ActiveCart returns the table's cart lines in insertion order.
func (s *Store) ActiveCart(tableID int) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList[model.CartItem](s, CartKey(tableID))
}

// PendingKitchenQueue returns history records not yet marked cooked, in
// creation order.
func (s *Store) PendingKitchenQueue() []model.CompletedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.kitchenDone()
	var pending []model.CompletedOrder
	for _, ord := range decodeList[model.CompletedOrder](s, KeyHistory) {
		if !done[ord.ID] {
			pending = append(pending, ord)
		}
	}
	return pending
}

// FullHistory returns every completed order ever created, in creation order.
func (s *Store) FullHistory() []model.CompletedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList[model.CompletedOrder](s, KeyHistory)
}

// TableSummary merges the active cart and the completed buffer into an
// item-name -> quantity view of everything outstanding at the table.
func (s *Store) TableSummary(tableID int) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := make(map[string]int64)
	for _, it := range decodeList[model.CartItem](s, CartKey(tableID)) {
		sum[it.Name] += it.Quantity
	}
	for _, ord := range decodeList[model.CompletedOrder](s, TableBufferKey(tableID)) {
		for _, line := range ord.Items {
			sum[line.Name] += line.Quantity
		}
	}
	return sum
}

// Status derives the lifecycle position of a history record.
func (s *Store) Status(orderID int64) model.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findOrder(orderID) == nil {
		return model.StatusUnknown
	}
	if s.kitchenDone()[orderID] {
		return model.StatusCooked
	}
	return model.StatusPending
}

// Menus returns the settings-owned menu list, read-only.
func (s *Store) Menus() []model.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeList[model.Menu](s, KeyMenus)
}

// TableCount returns the settings-owned table enumeration bound.
func (s *Store) TableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.readInt(KeyTableCount)
	if n <= 0 {
		return DefaultTableCount
	}
	return int(n)
}

func (s *Store) TotalRevenue() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readInt(KeyTotalRevenue)
}

func (s *Store) TotalOrderCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readInt(KeyTotalOrderCount)
}

// EventSeq returns the last changelog sequence issued or applied.
func (s *Store) EventSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readInt(KeyEventSeq)
}

// nextOrderID allocates a strictly monotonic order id. The millisecond
// timestamp is the candidate; a collision with the persisted high-water mark
// bumps by one instead of reusing an issued id.
func (s *Store) nextOrderID(now time.Time) int64 {
	last := s.readInt(KeyOrderIDHWM)
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
		log.Printf("order: id %d collides with high-water mark %d, bumped to %d", now.UnixMilli(), last, id)
		if s.mreg != nil {
			s.mreg.IDCollisions.Inc()
		}
	}
	if err := s.writeInt(KeyOrderIDHWM, id); err != nil {
		log.Printf("order: persist id high-water mark: %v", err)
	}
	return id
}

// appendEvent allocates the next changelog sequence and appends the event to
// the configured sink. Append failures are logged, not propagated: the store
// mutation already happened and the changelog is a recovery aid.
func (s *Store) appendEvent(ev changelog.Event) {
	seq := s.readInt(KeyEventSeq) + 1
	if err := s.writeInt(KeyEventSeq, seq); err != nil {
		log.Printf("order: persist event seq: %v", err)
	}
	if s.clog == nil {
		return
	}
	ev.Seq = seq
	if err := s.clog.Append(ev); err != nil {
		log.Printf("order: append changelog event seq=%d: %v", seq, err)
		return
	}
	if s.mreg != nil {
		s.mreg.EventsAppended.Inc()
	}
}

// findOrder returns the history record with the given id, or nil.
func (s *Store) findOrder(orderID int64) *model.CompletedOrder {
	history := decodeList[model.CompletedOrder](s, KeyHistory)
	for i := range history {
		if history[i].ID == orderID {
			return &history[i]
		}
	}
	return nil
}

func (s *Store) kitchenDone() map[int64]bool {
	done := make(map[int64]bool)
	for _, id := range decodeList[int64](s, KeyKitchenDone) {
		done[id] = true
	}
	return done
}

func (s *Store) writeIDSet(done map[int64]bool) error {
	ids := make([]int64, 0, len(done))
	for id := range done {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.writeJSON(KeyKitchenDone, ids)
}

// decodeList reads a JSON list value, failing closed: absent or malformed
// values read as empty.
func decodeList[T any](s *Store, key string) []T {
	raw, ok := s.kv.Get(key)
	if !ok {
		return nil
	}
	v, err := codec.DecodeJSON[[]T](raw)
	if err != nil {
		s.malformed(key, err)
		return nil
	}
	return v
}

func (s *Store) readInt(key string) int64 {
	raw, ok := s.kv.Get(key)
	if !ok {
		return 0
	}
	n, err := codec.DecodeInt(raw)
	if err != nil {
		s.malformed(key, err)
		return 0
	}
	return n
}

func (s *Store) writeJSON(key string, v any) error {
	raw, err := codec.EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(key, raw)
}

func (s *Store) writeInt(key string, n int64) error {
	return s.kv.Set(key, codec.EncodeInt(n))
}

func (s *Store) malformed(key string, err error) {
	log.Printf("order: malformed value at %s, treating as absent: %v", key, err)
	if s.mreg != nil {
		s.mreg.MalformedRecords.Inc()
	}
}
