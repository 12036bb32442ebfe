package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/usecases"
)

// Manifest lists the lots to load and their spots.
type Manifest struct {
	Source string     `json:"source"`
	Lots   []LotEntry `json:"lots"`
}

type LotEntry struct {
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Spots     []SpotEntry `json:"spots,omitempty"`
	// SpotsCSV is a CSV file with label and category columns, resolved
	// relative to the manifest.
	SpotsCSV string `json:"spots_csv,omitempty"`
}

type SpotEntry struct {
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
}

// Summary counts what one run did.
type Summary struct {
	LotsCreated  int
	LotsReused   int
	SpotsCreated int
	SpotsSkipped int
	Failed       int
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	base := filepath.Dir(path)
	for i := range m.Lots {
		entry := &m.Lots[i]
		if entry.SpotsCSV == "" {
			continue
		}
		f, err := os.Open(filepath.Join(base, entry.SpotsCSV))
		if err != nil {
			return nil, fmt.Errorf("lot %q: %w", entry.Name, err)
		}
		spots, err := readSpotsCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("lot %q: %s: %w", entry.Name, entry.SpotsCSV, err)
		}
		entry.Spots = append(entry.Spots, spots...)
	}
	return &m, nil
}

func readSpotsCSV(r io.Reader) ([]SpotEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["label"]; !ok {
		return nil, fmt.Errorf("missing label column")
	}

	var spots []SpotEntry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		spots = append(spots, SpotEntry{
			Label:    getField(record, cols, "label"),
			Category: getField(record, cols, "category"),
		})
	}
	return spots, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// ingest creates the manifest's lots and spots. Lots are matched by name so
// a rerun only adds what is missing; spots whose label already exists in the
// lot are skipped.
func ingest(ctx context.Context, lots *usecases.LotService, spots *usecases.SpotService, m *Manifest, workers int) (Summary, error) {
	existing, err := lots.ListLots(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list lots: %w", err)
	}
	byName := make(map[string]string, len(existing))
	for _, l := range existing {
		byName[l.Name] = l.ID
	}

	if workers < 1 {
		workers = 1
	}
	var (
		mu  sync.Mutex
		sum Summary
		wg  sync.WaitGroup
	)
	sem := make(chan struct{}, workers)

	for _, entry := range m.Lots {
		lotID, reused := byName[strings.TrimSpace(entry.Name)]

		wg.Add(1)
		go func(e LotEntry, lotID string, reused bool) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			local := ingestLot(ctx, lots, spots, e, lotID, reused)

			mu.Lock()
			sum.LotsCreated += local.LotsCreated
			sum.LotsReused += local.LotsReused
			sum.SpotsCreated += local.SpotsCreated
			sum.SpotsSkipped += local.SpotsSkipped
			sum.Failed += local.Failed
			mu.Unlock()
		}(entry, lotID, reused)
	}

	wg.Wait()
	return sum, nil
}

func ingestLot(ctx context.Context, lots *usecases.LotService, spots *usecases.SpotService, e LotEntry, lotID string, reused bool) Summary {
	var sum Summary
	log := slog.With("lot", e.Name)

	if reused {
		sum.LotsReused++
	} else {
		lot, err := lots.CreateLot(ctx, e.Name, e.Latitude, e.Longitude)
		if err != nil {
			log.Error("create lot", "error", err)
			sum.Failed++
			return sum
		}
		lotID = lot.ID
		sum.LotsCreated++
	}

	for _, s := range e.Spots {
		_, err := spots.CreateSpot(ctx, lotID, s.Label, s.Category)
		switch {
		case err == nil:
			sum.SpotsCreated++
		case domain.IsKind(err, domain.KindConflict):
			sum.SpotsSkipped++
		default:
			log.Error("create spot", "label", s.Label, "error", err)
			sum.Failed++
		}
	}
	log.Info("lot ingested", "lot_id", lotID, "spots", len(e.Spots))
	return sum
}
