package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/cbm-reco/catrack/ca/driver"
	"github.com/cbm-reco/catrack/ca/hitstore"
	"github.com/cbm-reco/catrack/ca/pars"
)

var (
	archivePath  = flag.String("archive", "", "Path to a hitstore.Encode archive (required)")
	geomPath     = flag.String("geometry", "", "Path to a JSON-encoded pars.Parameters (required)")
	windowLength = flag.Float64("window-length", 1000, "Time-window length in ns")
	windowStride = flag.Float64("window-stride", 800, "Time-window stride in ns")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *archivePath == "" || *geomPath == "" {
		log.Fatalf("catrack-replay: -archive and -geometry are required")
	}

	p, err := loadParameters(*geomPath)
	if err != nil {
		log.Panicf("%v", err)
	}

	f, err := os.Open(*archivePath)
	if err != nil {
		log.Panicf("catrack-replay: opening archive: %v", err)
	}
	defer f.Close()

	store, err := hitstore.Decode(f)
	if err != nil {
		log.Panicf("catrack-replay: decoding archive: %v", err)
	}

	results, err := driver.RunParallel(p, store, *windowLength, *windowStride)
	if err != nil {
		log.Panicf("catrack-replay: %v", err)
	}

	nTracks, nHits := 0, 0
	for _, r := range results {
		nTracks += len(r.Tracks)
		nHits += len(r.HitIndices)
	}
	log.Printf("catrack-replay: %d streams, %d tracks, %d owned hits", len(results), nTracks, nHits)
}

// loadParameters reads a JSON-encoded pars.Parameters. The geometry/
// parameter builder proper is out of the core's scope (spec.md §1); this
// is only a convenience loader for smoke-testing a serialized geometry.
func loadParameters(path string) (*pars.Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p pars.Parameters
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return nil, err
	}
	if p.NActiveStations == 0 {
		p.NActiveStations = len(p.Stations)
	}
	return &p, nil
}
