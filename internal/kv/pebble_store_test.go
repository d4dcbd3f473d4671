package kv

import (
	"testing"
)

func TestPebbleStore_SetGetRemove(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Set("menus", `[{"id":1}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok := st.Get("menus")
	if !ok || v != `[{"id":1}]` {
		t.Fatalf("get: %q ok=%v", v, ok)
	}

	if err := st.Remove("menus"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := st.Get("menus"); ok {
		t.Fatalf("removed key still present")
	}
}

func TestPebbleStore_LoadAllAndRange(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	_ = st.Set("stale", "x")
	st.LoadAll(map[string]string{
		"cart:1":       `[{"menuId":1,"quantity":2}]`,
		"totalRevenue": "5000",
	})

	if _, ok := st.Get("stale"); ok {
		t.Fatalf("LoadAll must drop prior keys")
	}
	if v, ok := st.Get("totalRevenue"); !ok || v != "5000" {
		t.Fatalf("bad totalRevenue: %q ok=%v", v, ok)
	}

	count := 0
	if err := st.Range(func(key, value string) error { count++; return nil }); err != nil {
		t.Fatalf("range err: %v", err)
	}
	if count != 2 {
		t.Fatalf("range count=%d want=2", count)
	}
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if err := st.Set("history", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st2.Close() })
	if v, ok := st2.Get("history"); !ok || v != "[]" {
		t.Fatalf("value lost across reopen: %q ok=%v", v, ok)
	}
}
