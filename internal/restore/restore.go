package restore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"

	"hallpos/internal/changelog"
	"hallpos/internal/kv"
	"hallpos/internal/manifest"
	"hallpos/internal/order"
)

// Restorer rebuilds the persisted store from the latest snapshot plus the
// changelog tail: load the raw key dump, then replay events with a sequence
// above the manifest's high-water mark through the order store.
type Restorer struct {
	kvStore         kv.Store
	orders          *order.Store
	manifestReader  manifest.Reader
	snapshotBaseDir string
	changelogPath   string
}

// KafkaReader reads the latest manifest record from a compacted Kafka topic.
// It satisfies manifest.Reader.
type KafkaReader struct {
	brokers []string
	topic   string
	key     []byte
}

func NewKafkaReader(brokers []string, topic string, key string) *KafkaReader {
	return &KafkaReader{brokers: brokers, topic: topic, key: []byte(key)}
}

func (k *KafkaReader) ReadLatest() (manifest.Manifest, error) {
	// Read from the beginning and keep the last record seen for the key
	// (fine for small compacted topics).
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   k.brokers,
		Topic:     k.topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var last manifest.Manifest
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return manifest.Manifest{}, fmt.Errorf("read kafka: %w", err)
		}
		if string(m.Key) != string(k.key) {
			continue
		}
		var man manifest.Manifest
		if err := json.Unmarshal(m.Value, &man); err != nil {
			return manifest.Manifest{}, fmt.Errorf("unmarshal kafka manifest: %w", err)
		}
		last = man
	}
	if last.SnapshotID == "" {
		return manifest.Manifest{}, fmt.Errorf("no manifest found for key")
	}
	return last, nil
}

func NewRestorer(st kv.Store, orders *order.Store, mr manifest.Reader, snapshotBaseDir, changelogPath string) *Restorer {
	return &Restorer{
		kvStore:         st,
		orders:          orders,
		manifestReader:  mr,
		snapshotBaseDir: snapshotBaseDir,
		changelogPath:   changelogPath,
	}
}

type RestoreResult struct {
	Applied int
	Skipped int
	Error   error
}

// RestoreFromSnapshot replaces the store contents with the snapshot's raw
// key dump. A missing snapshot is skipped, not fatal.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) error {
	if snapshotID == "" {
		return nil
	}
	path := filepath.Join(r.snapshotBaseDir, snapshotID, "state.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("restore: snapshot not found at %s, skipping", path)
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var dump map[string]string
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	r.kvStore.LoadAll(dump)
	log.Printf("restore: loaded %d keys from snapshot %s", len(dump), snapshotID)
	return nil
}

// ReplayChangelog applies the JSONL changelog tail. Events with a sequence
// at or below fromSeq (or below the store's own high-water mark) are skipped.
func (r *Restorer) ReplayChangelog(changelogPath string, fromSeq int64) RestoreResult {
	file, err := os.Open(changelogPath)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("open changelog: %w", err)}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	applied, skipped := 0, 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		var ev changelog.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("unmarshal line %d: %w", lineNum, err)}
		}
		if ev.Seq <= fromSeq {
			skipped++
			continue
		}
		ok, err := r.orders.ApplyEvent(ev)
		if err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("apply line %d: %w", lineNum, err)}
		}
		if ok {
			applied++
		} else {
			skipped++
		}
	}

	if err := scanner.Err(); err != nil {
		return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("scan changelog: %w", err)}
	}
	return RestoreResult{Applied: applied, Skipped: skipped}
}

// ReplayChangelogKafka consumes events from the changelog topic (partition 0)
// and applies them until the topic is drained.
func (r *Restorer) ReplayChangelogKafka(brokers []string, topic string, fromSeq int64) RestoreResult {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer rd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	applied, skipped := 0, 0
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("read kafka: %w", err)}
		}
		var ev changelog.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("unmarshal event: %w", err)}
		}
		if ev.Seq <= fromSeq {
			skipped++
			continue
		}
		ok, err := r.orders.ApplyEvent(ev)
		if err != nil {
			return RestoreResult{Applied: applied, Skipped: skipped, Error: fmt.Errorf("apply: %w", err)}
		}
		if ok {
			applied++
		} else {
			skipped++
		}
	}
	return RestoreResult{Applied: applied, Skipped: skipped}
}

// RestoreAndReplay runs the full recovery: latest manifest, snapshot load,
// file changelog replay from the manifest's sequence.
func (r *Restorer) RestoreAndReplay() (RestoreResult, error) {
	m, err := r.manifestReader.ReadLatest()
	if err != nil {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}
	result := r.ReplayChangelog(r.changelogPath, m.LastEventSeq)
	return result, result.Error
}
