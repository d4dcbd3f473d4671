package order

import (
	"errors"
	"testing"
	"time"

	"hallpos/internal/kv"
	"hallpos/internal/model"
)

var (
	tea  = model.Menu{ID: 1, Name: "Tea", Price: 1000}
	cake = model.Menu{ID: 2, Name: "Cake", Price: 3000}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kv.NewMemoryStore(), nil, nil)
}

func TestAddToCart_MergesSameMenu(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart := s.ActiveCart(1)
	if len(cart) != 1 {
		t.Fatalf("want 1 line, got %d: %+v", len(cart), cart)
	}
	if cart[0].MenuID != 1 || cart[0].Quantity != 2 {
		t.Fatalf("unexpected line: %+v", cart[0])
	}
}

func TestAddToCart_TablesAreIndependent(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddToCart(2, cake); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := s.ActiveCart(1); len(got) != 1 || got[0].MenuID != 1 {
		t.Fatalf("table 1 cart: %+v", got)
	}
	if got := s.ActiveCart(2); len(got) != 1 || got[0].MenuID != 2 {
		t.Fatalf("table 2 cart: %+v", got)
	}
}

func TestChangeQuantity_NeverBelowOne(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.ChangeQuantity(1, tea.ID, 2); err != nil {
		t.Fatalf("change: %v", err)
	}
	if cart := s.ActiveCart(1); cart[0].Quantity != 3 {
		t.Fatalf("want qty 3, got %+v", cart)
	}

	// decrement to zero removes the line
	if err := s.ChangeQuantity(1, tea.ID, -3); err != nil {
		t.Fatalf("change: %v", err)
	}
	if cart := s.ActiveCart(1); len(cart) != 0 {
		t.Fatalf("line should be removed, got %+v", cart)
	}

	// everything left in any cart has quantity >= 1
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.ChangeQuantity(1, tea.ID, -5); err != nil {
		t.Fatalf("change: %v", err)
	}
	for _, it := range s.ActiveCart(1) {
		if it.Quantity <= 0 {
			t.Fatalf("cart holds non-positive quantity: %+v", it)
		}
	}
}

func TestChangeQuantity_AbsentItemIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.ChangeQuantity(1, 99, 1); err != nil {
		t.Fatalf("change: %v", err)
	}
	if cart := s.ActiveCart(1); len(cart) != 0 {
		t.Fatalf("unexpected cart: %+v", cart)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Checkout(1)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("want ErrEmptyCart, got %v", err)
	}
	if s.TotalRevenue() != 0 || s.TotalOrderCount() != 0 {
		t.Fatalf("aggregates moved on failed checkout: revenue=%d count=%d", s.TotalRevenue(), s.TotalOrderCount())
	}
	if h := s.FullHistory(); len(h) != 0 {
		t.Fatalf("history moved on failed checkout: %+v", h)
	}
}

func TestCheckout_FullScenario(t *testing.T) {
	s := newTestStore(t)
	// cart: 2x Tea @1000, 1x Cake @3000
	for i := 0; i < 2; i++ {
		if err := s.AddToCart(1, tea); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := s.AddToCart(1, cake); err != nil {
		t.Fatalf("add: %v", err)
	}

	ord, err := s.Checkout(1)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if ord.TotalPrice != 5000 {
		t.Fatalf("want total 5000, got %d", ord.TotalPrice)
	}
	if ord.TableID != 1 || ord.TableName != "Table 1" {
		t.Fatalf("unexpected order: %+v", ord)
	}
	if len(ord.Items) != 2 || ord.Items[0].Quantity != 2 || ord.Items[1].Quantity != 1 {
		t.Fatalf("unexpected items: %+v", ord.Items)
	}

	if s.TotalRevenue() != 5000 {
		t.Fatalf("want revenue 5000, got %d", s.TotalRevenue())
	}
	if s.TotalOrderCount() != 1 {
		t.Fatalf("want order count 1, got %d", s.TotalOrderCount())
	}
	if cart := s.ActiveCart(1); len(cart) != 0 {
		t.Fatalf("cart should be empty after checkout: %+v", cart)
	}

	pending := s.PendingKitchenQueue()
	if len(pending) != 1 || pending[0].ID != ord.ID {
		t.Fatalf("order missing from kitchen queue: %+v", pending)
	}
	if st := s.Status(ord.ID); st != model.StatusPending {
		t.Fatalf("want pending status, got %v", st)
	}
}

func TestCheckout_LaterMenuPriceChangeDoesNotAlterHistory(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	ord, err := s.Checkout(1)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	// price raise affects future carts only
	dearTea := model.Menu{ID: 1, Name: "Tea", Price: 2000}
	if err := s.AddToCart(2, dearTea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := s.FullHistory()[0].TotalPrice; got != ord.TotalPrice || got != 1000 {
		t.Fatalf("history total changed: %d", got)
	}
}

func TestMarkKitchenComplete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	ord, err := s.Checkout(1)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	applied, err := s.MarkKitchenComplete(ord.ID)
	if err != nil || !applied {
		t.Fatalf("first mark: applied=%v err=%v", applied, err)
	}
	applied, err = s.MarkKitchenComplete(ord.ID)
	if err != nil || applied {
		t.Fatalf("second mark should be a no-op: applied=%v err=%v", applied, err)
	}

	if q := s.PendingKitchenQueue(); len(q) != 0 {
		t.Fatalf("order still pending: %+v", q)
	}
	if h := s.FullHistory(); len(h) != 1 || h[0].ID != ord.ID {
		t.Fatalf("history lost the order: %+v", h)
	}
	if st := s.Status(ord.ID); st != model.StatusCooked {
		t.Fatalf("want cooked status, got %v", st)
	}
}

func TestMarkKitchenComplete_UnknownIDTolerated(t *testing.T) {
	s := newTestStore(t)
	applied, err := s.MarkKitchenComplete(12345)
	if err != nil || applied {
		t.Fatalf("unknown id must be a silent no-op: applied=%v err=%v", applied, err)
	}
}

func TestCloseTable_ClearsTransientStateOnly(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	ord, err := s.Checkout(1)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := s.MarkKitchenComplete(ord.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.AddToCart(1, cake); err != nil {
		t.Fatalf("add: %v", err)
	}

	histBefore := len(s.FullHistory())
	revBefore := s.TotalRevenue()

	if err := s.CloseTable(1); err != nil {
		t.Fatalf("close: %v", err)
	}

	if cart := s.ActiveCart(1); len(cart) != 0 {
		t.Fatalf("cart survived close: %+v", cart)
	}
	if sum := s.TableSummary(1); len(sum) != 0 {
		t.Fatalf("buffer survived close: %+v", sum)
	}
	if got := len(s.FullHistory()); got != histBefore {
		t.Fatalf("history changed across close: %d != %d", got, histBefore)
	}
	if s.TotalRevenue() != revBefore {
		t.Fatalf("revenue changed across close")
	}
	if st := s.Status(ord.ID); st != model.StatusCooked {
		t.Fatalf("kitchen set changed across close: %v", st)
	}

	// closing an already-clean table succeeds
	if err := s.CloseTable(1); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestTableSummary_MergesCartAndBuffer(t *testing.T) {
	s := newTestStore(t)
	// first sitting round: 1x Tea paid
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Checkout(1); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// second round in progress: 2x Tea, 1x Cake unpaid
	for i := 0; i < 2; i++ {
		if err := s.AddToCart(1, tea); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := s.AddToCart(1, cake); err != nil {
		t.Fatalf("add: %v", err)
	}

	sum := s.TableSummary(1)
	if sum["Tea"] != 3 || sum["Cake"] != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestOrderIDs_StrictlyMonotonic(t *testing.T) {
	s := newTestStore(t)
	frozen := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	old := Now
	defer func() { Now = old }()
	Now = func() time.Time { return frozen }

	var last int64
	for i := 0; i < 3; i++ {
		if err := s.AddToCart(1, tea); err != nil {
			t.Fatalf("add: %v", err)
		}
		ord, err := s.Checkout(1)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if ord.ID <= last {
			t.Fatalf("id %d not above previous %d", ord.ID, last)
		}
		last = ord.ID
	}
	// first id is the frozen timestamp, later ones bumped past it
	if last != frozen.UnixMilli()+2 {
		t.Fatalf("want hwm bumping, got last id %d", last)
	}
}

func TestReads_MalformedValuesFailClosed(t *testing.T) {
	st := kv.NewMemoryStore()
	s := New(st, nil, nil)
	_ = st.Set(KeyHistory, "{not json")
	_ = st.Set(KeyTotalRevenue, "NaN")
	_ = st.Set(CartKey(1), "[[[")

	if h := s.FullHistory(); len(h) != 0 {
		t.Fatalf("malformed history should read empty: %+v", h)
	}
	if s.TotalRevenue() != 0 {
		t.Fatalf("malformed revenue should read 0")
	}
	if c := s.ActiveCart(1); len(c) != 0 {
		t.Fatalf("malformed cart should read empty: %+v", c)
	}
	// a fresh write recovers the key
	if err := s.AddToCart(1, tea); err != nil {
		t.Fatalf("add: %v", err)
	}
	if c := s.ActiveCart(1); len(c) != 1 {
		t.Fatalf("cart did not recover: %+v", c)
	}
}

func TestTableCount_DefaultsWhenUnset(t *testing.T) {
	st := kv.NewMemoryStore()
	s := New(st, nil, nil)
	if got := s.TableCount(); got != DefaultTableCount {
		t.Fatalf("want default %d, got %d", DefaultTableCount, got)
	}
	_ = st.Set(KeyTableCount, "12")
	if got := s.TableCount(); got != 12 {
		t.Fatalf("want 12, got %d", got)
	}
}
