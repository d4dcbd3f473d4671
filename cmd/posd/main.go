package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hallpos/internal/changelog"
	"hallpos/internal/config"
	"hallpos/internal/kv"
	"hallpos/internal/manifest"
	"hallpos/internal/metrics"
	"hallpos/internal/model"
	"hallpos/internal/order"
	"hallpos/internal/poller"
	"hallpos/internal/snapshot"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		backend     string
		inputSource string
		httpAddr    string
		bootstrap   string
	)
	flag.StringVar(&backend, "backend", cfg.Backend, "state backend: memory|badger|pebble|redis")
	flag.StringVar(&inputSource, "input-source", "sample", "mutation source: sample|kafka")
	flag.StringVar(&httpAddr, "http", cfg.HTTP.Addr, "http listen for /metrics and /healthz")
	flag.StringVar(&bootstrap, "kafka-bootstrap", cfg.Kafka.Bootstrap, "kafka bootstrap servers")
	flag.Parse()
	cfg.Backend = backend
	cfg.HTTP.Addr = httpAddr
	cfg.Kafka.Bootstrap = bootstrap

	if err := run(cfg, inputSource); err != nil {
		log.Fatalf("posd failed: %v", err)
	}
}

func run(cfg config.Config, inputSource string) error {
	log.Printf("starting posd backend=%s changelog-sink=%s snapshot-interval=%ds",
		cfg.Backend, cfg.Journal.ChangelogSink, cfg.Journal.SnapshotIntervalSec)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	clog, err := buildChangelog(cfg)
	if err != nil {
		return err
	}
	mani := buildManifest(cfg)
	snap := snapshot.NewFilesystemSnapshotter(cfg.Journal.SnapshotDir)

	mreg := metrics.NewRegistry()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		})
		_ = http.ListenAndServe(cfg.HTTP.Addr, mux)
	}()

	orders := order.New(st, clog, mreg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// periodic snapshot + manifest
	if cfg.Journal.SnapshotIntervalSec > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Journal.SnapshotIntervalSec) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					publishSnapshot(snap, mani, st, orders)
				}
			}
		}()
	}

	if inputSource == "kafka" && cfg.Kafka.Bootstrap != "" {
		return runBridge(ctx, cfg, orders)
	}
	return runSample(ctx, cfg, st, orders, snap, mani)
}

func openStore(cfg config.Config) (kv.Store, error) {
	switch cfg.Backend {
	case "badger":
		return kv.NewBadgerStore(cfg.DataDir)
	case "pebble":
		return kv.NewPebbleStore(cfg.DataDir)
	case "redis":
		return kv.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return kv.NewMemoryStore(), nil
	}
}

func buildChangelog(cfg config.Config) (changelog.Writer, error) {
	var clog changelog.Writer
	sink := cfg.Journal.ChangelogSink
	if sink == "off" {
		return nil, nil
	}
	if sink == "file" || sink == "both" || sink == "" {
		fw, err := changelog.NewFileWriter(cfg.Journal.ChangelogDir, "pos.jsonl")
		if err != nil {
			return nil, fmt.Errorf("init changelog file: %w", err)
		}
		clog = fw
	}
	if (sink == "kafka" || sink == "both") && cfg.Kafka.Bootstrap != "" {
		kw := changelog.NewKafkaWriter(cfg.Kafka.Bootstrap, cfg.Kafka.TopicChangelog)
		if clog == nil {
			clog = kw
		} else {
			clog = changelog.NewMultiWriter(clog, kw)
		}
	}
	return clog, nil
}

func buildManifest(cfg config.Config) manifest.Publisher {
	maniFS := manifest.NewFilesystemManifest(cfg.Journal.SnapshotDir)
	var mani manifest.Publisher = maniFS
	if (cfg.Journal.ManifestSink == "kafka" || cfg.Journal.ManifestSink == "both") && cfg.Kafka.Bootstrap != "" {
		maniK := manifest.NewKafkaManifest(cfg.Kafka.Bootstrap, cfg.Kafka.TopicSnapshots, "pos-manifest-latest")
		if cfg.Journal.ManifestSink == "kafka" {
			mani = maniK
		} else {
			mani = manifest.MultiPublisher(maniFS, maniK)
		}
	}
	return mani
}

func publishSnapshot(snap snapshot.Snapshotter, mani manifest.Publisher, st kv.Store, orders *order.Store) {
	id := time.Now().UTC().Format(time.RFC3339)
	if err := snap.WriteSnapshot(id, st); err != nil {
		log.Printf("write snapshot: %v", err)
		return
	}
	if err := mani.PublishLatest(id, orders.EventSeq()); err != nil {
		log.Printf("publish manifest: %v", err)
		return
	}
	log.Printf("snapshot and manifest published: %s", id)
}

// runBridge consumes changelog events produced by other terminals and applies
// them to the local store. Best-effort sync: consistency lag is bounded by
// the consume cadence.
func runBridge(ctx context.Context, cfg config.Config, orders *order.Store) error {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Bootstrap,
		"group.id":           cfg.Kafka.GroupID,
		"enable.auto.commit": true,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{cfg.Kafka.TopicChangelog}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("bridge started bootstrap=%s topic=%s", cfg.Kafka.Bootstrap, cfg.Kafka.TopicChangelog)

	for ctx.Err() == nil {
		msg, err := c.ReadMessage(time.Second)
		if err != nil {
			continue // timeout or transient; keep polling
		}
		var ev changelog.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Printf("bridge: bad event at offset %v: %v", msg.TopicPartition.Offset, err)
			continue
		}
		applied, err := orders.ApplyRemote(ev)
		if err != nil {
			log.Printf("bridge: apply seq=%d: %v", ev.Seq, err)
			continue
		}
		if applied {
			log.Printf("bridge: applied %s seq=%d", ev.Type, ev.Seq)
		}
	}
	return nil
}

// runSample seeds reference data and walks one table through the full
// lifecycle, with a poller watching the kitchen queue the way a view would.
func runSample(ctx context.Context, cfg config.Config, st kv.Store, orders *order.Store, snap snapshot.Snapshotter, mani manifest.Publisher) error {
	seedSettings(st, orders)

	interval := time.Duration(cfg.Poll.IntervalMS) * time.Millisecond
	sub := poller.Subscribe(st, interval,
		func() []model.CompletedOrder { return orders.PendingKitchenQueue() },
		func(q []model.CompletedOrder) { log.Printf("kitchen queue: %d pending", len(q)) },
	)
	defer sub.Stop()

	menus := orders.Menus()
	if err := orders.AddToCart(1, menus[0]); err != nil {
		return err
	}
	if err := orders.AddToCart(1, menus[0]); err != nil {
		return err
	}
	if err := orders.AddToCart(1, menus[1]); err != nil {
		return err
	}
	ord, err := orders.Checkout(1)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	log.Printf("checked out order id=%d table=%d total=%d", ord.ID, ord.TableID, ord.TotalPrice)

	if _, err := orders.MarkKitchenComplete(ord.ID); err != nil {
		return fmt.Errorf("kitchen complete: %w", err)
	}
	if err := orders.CloseTable(1); err != nil {
		return fmt.Errorf("close table: %w", err)
	}
	log.Printf("revenue=%d orders=%d history=%d",
		orders.TotalRevenue(), orders.TotalOrderCount(), len(orders.FullHistory()))

	// leave time for the poller to observe the final state, then snapshot
	select {
	case <-ctx.Done():
	case <-time.After(2 * interval):
	}
	publishSnapshot(snap, mani, st, orders)
	log.Printf("posd sample run completed")
	return nil
}

// seedSettings makes sure the sample run has the two distinct menu entries
// it walks; a persisted backend carrying a shorter list gets reseeded.
func seedSettings(st kv.Store, orders *order.Store) {
	if len(orders.Menus()) >= 2 {
		return
	}
	menus := []model.Menu{
		{ID: 1, Name: "Tea", Price: 1000},
		{ID: 2, Name: "Cake", Price: 3000},
		{ID: 3, Name: "Coffee", Price: 1500},
	}
	b, _ := json.Marshal(menus)
	_ = st.Set(order.KeyMenus, string(b))
	_ = st.Set(order.KeyTableCount, "8")
}
