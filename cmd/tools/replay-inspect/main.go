// Command replay-inspect opens a cached session artifact and prints a
// summary without starting a server.
//
// Usage:
//
//	go run ./cmd/tools/replay-inspect -cache race-cache.db -year 2024 -round 5 -kind R
package main

import (
	"encoding/json"
	"flag"
	"log"

	"github.com/joptimus/fox-replay-system/internal/cache"
)

func main() {
	cachePath := flag.String("cache", "race-cache.db", "Path to the SQLite session cache")
	year := flag.Int("year", 0, "Season year")
	round := flag.Int("round", 0, "Round number")
	kind := flag.String("kind", "R", "Session kind: R, S, Q, SQ")
	flag.Parse()

	if *year == 0 || *round == 0 {
		log.Fatal("Error: -year and -round flags are required")
	}

	store, err := cache.Open(*cachePath)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer store.Close()

	artifact, err := store.Get(cache.Key{Year: *year, Round: *round, Kind: *kind})
	if err != nil {
		log.Fatalf("Failed to load artifact: %v", err)
	}

	frames := artifact.Frames
	log.Printf("Artifact: %d_%d_%s", *year, *round, *kind)
	log.Printf("Frames: %d", len(frames))
	if len(frames) > 0 {
		first, last := frames[0], frames[len(frames)-1]
		log.Printf("Time span: %.3fs .. %.3fs (%.1fs)", first.TS, last.TS, last.TS-first.TS)
		log.Printf("Drivers: %d", len(first.Drivers))
		log.Printf("Leader lap at end: %d", last.LeaderLap)
	}

	var meta map[string]json.RawMessage
	if err := json.Unmarshal(artifact.MetadataRaw, &meta); err == nil {
		for _, field := range []string{"TotalLaps", "RaceStartTimeS", "DriverCodes"} {
			if raw, ok := meta[field]; ok {
				log.Printf("%s: %s", field, raw)
			}
		}
	}
}
