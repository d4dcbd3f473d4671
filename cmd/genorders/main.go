package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"hallpos/internal/changelog"
	"hallpos/internal/model"
)

func main() {
	var count int
	var tables int
	var outputFile string
	flag.IntVar(&count, "count", 100, "number of checkout events to generate")
	flag.IntVar(&tables, "tables", 8, "table count to spread orders over")
	flag.StringVar(&outputFile, "output", "pos.changelog.jsonl", "output file")
	flag.Parse()

	if err := generateEvents(count, tables, outputFile); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generateEvents(count, tables int, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	menus := []model.Menu{
		{ID: 1, Name: "Tea", Price: 1000},
		{ID: 2, Name: "Cake", Price: 3000},
		{ID: 3, Name: "Coffee", Price: 1500},
		{ID: 4, Name: "Pasta", Price: 9000},
		{ID: 5, Name: "Salad", Price: 6500},
	}

	base := time.Now().UTC()
	rng := rand.New(rand.NewSource(base.UnixNano()))

	enc := json.NewEncoder(file)
	for i := 0; i < count; i++ {
		ts := base.Add(time.Duration(i) * 10 * time.Second)
		tableID := 1 + rng.Intn(tables)

		nLines := 1 + rng.Intn(3)
		lines := make([]model.OrderLine, 0, nLines)
		var total int64
		for j := 0; j < nLines; j++ {
			m := menus[rng.Intn(len(menus))]
			qty := int64(1 + rng.Intn(4))
			lines = append(lines, model.OrderLine{ID: m.ID, Name: m.Name, Quantity: qty})
			total += m.Price * qty
		}

		ord := model.CompletedOrder{
			ID:         ts.UnixMilli(),
			TableID:    tableID,
			TableName:  model.TableName(tableID),
			Items:      lines,
			OrderTime:  ts.Format("15:04"),
			TotalPrice: total,
		}
		ev := changelog.Event{
			Seq:     int64(i + 1),
			Type:    changelog.TypeOrderCreated,
			TableID: tableID,
			OrderID: ord.ID,
			TS:      ts.UnixMilli(),
			Order:   &ord,
		}
		if err := enc.Encode(&ev); err != nil {
			return fmt.Errorf("encode event %d: %w", i+1, err)
		}
	}

	log.Printf("generated %d checkout events to %s", count, outputFile)
	return nil
}
