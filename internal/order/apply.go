package order

import (
	"fmt"

	"hallpos/internal/changelog"
	"hallpos/internal/model"
)

// ApplyEvent replays one changelog event against the store. Events at or
// below the persisted sequence high-water mark are skipped, so replaying an
// overlapping changelog is safe. Reports whether the event applied.
func (s *Store) ApplyEvent(ev changelog.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Seq <= s.readInt(KeyEventSeq) {
		return false, nil
	}
	applied, err := s.applyLocked(ev)
	if err != nil {
		return false, err
	}
	if err := s.writeInt(KeyEventSeq, ev.Seq); err != nil {
		return false, err
	}
	return applied, nil
}

// ApplyRemote applies an event produced by another terminal. Remote
// sequences come from that terminal's own counter, so the local high-water
// mark says nothing about them and is left untouched; dedupe rests on the
// events themselves: creates are keyed by order id, kitchen completions by
// set membership, closes by removal.
func (s *Store) ApplyRemote(ev changelog.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ev)
}

func (s *Store) applyLocked(ev changelog.Event) (bool, error) {
	switch ev.Type {
	case changelog.TypeOrderCreated:
		if ev.Order == nil {
			return false, fmt.Errorf("event seq=%d: order.created without record", ev.Seq)
		}
		return s.applyOrderCreated(*ev.Order)
	case changelog.TypeKitchenComplete:
		done := s.kitchenDone()
		if done[ev.OrderID] || s.findOrder(ev.OrderID) == nil {
			return false, nil
		}
		done[ev.OrderID] = true
		if err := s.writeIDSet(done); err != nil {
			return false, err
		}
		return true, nil
	case changelog.TypeTableClosed:
		if err := s.kv.Remove(CartKey(ev.TableID)); err != nil {
			return false, err
		}
		if err := s.kv.Remove(TableBufferKey(ev.TableID)); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("event seq=%d: unknown type %q", ev.Seq, ev.Type)
	}
}

func (s *Store) applyOrderCreated(ord model.CompletedOrder) (bool, error) {
	if s.findOrder(ord.ID) != nil {
		// already in history; overlap between snapshot, changelog, and the
		// bridge topic is expected
		return false, nil
	}
	history := decodeList[model.CompletedOrder](s, KeyHistory)
	if err := s.writeJSON(KeyHistory, append(history, ord)); err != nil {
		return false, err
	}
	buffer := decodeList[model.CompletedOrder](s, TableBufferKey(ord.TableID))
	if err := s.writeJSON(TableBufferKey(ord.TableID), append(buffer, ord)); err != nil {
		return false, err
	}
	if err := s.writeInt(KeyTotalRevenue, s.readInt(KeyTotalRevenue)+ord.TotalPrice); err != nil {
		return false, err
	}
	if err := s.writeInt(KeyTotalOrderCount, s.readInt(KeyTotalOrderCount)+1); err != nil {
		return false, err
	}
	if err := s.kv.Remove(CartKey(ord.TableID)); err != nil {
		return false, err
	}
	// keep the id allocator ahead of replayed ids
	if ord.ID > s.readInt(KeyOrderIDHWM) {
		if err := s.writeInt(KeyOrderIDHWM, ord.ID); err != nil {
			return false, err
		}
	}
	return true, nil
}
