// Command ingestor loads lots and spots from a JSON manifest.
//
//	ingestor [manifest.json] [lot name filter, comma separated]
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/samirrijal/bilbopark/internal/adapters/postgres"
	"github.com/samirrijal/bilbopark/internal/core/usecases"
	"github.com/samirrijal/bilbopark/internal/pkg/config"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("bilbopark-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Optional filter by lot name
	if len(os.Args) > 2 {
		keep := map[string]bool{}
		for _, n := range strings.Split(os.Args[2], ",") {
			keep[strings.TrimSpace(n)] = true
		}
		filtered := manifest.Lots[:0]
		for _, l := range manifest.Lots {
			if keep[l.Name] {
				filtered = append(filtered, l)
			}
		}
		manifest.Lots = filtered
	}

	slog.Info("ingesting", "lots", len(manifest.Lots), "source", manifest.Source)

	lots := usecases.NewLotService(db, nil, nil)
	spots := usecases.NewSpotService(db, nil)

	sum, err := ingest(ctx, lots, spots, manifest, 4)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}

	slog.Info("ingestion complete",
		"lots_created", sum.LotsCreated,
		"lots_reused", sum.LotsReused,
		"spots_created", sum.SpotsCreated,
		"spots_skipped", sum.SpotsSkipped,
		"failed", sum.Failed,
	)
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
