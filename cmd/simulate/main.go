package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/config"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/export"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/generate"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/logging"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/stats"
)

// #region main

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DBPath, "path to the race history database")
	ontologyPath := flag.String("ontology", cfg.OntologyPath, "path to the ontology YAML artifact")
	track := flag.String("track", "", "track to simulate (defaults to the ontology's track)")
	count := flag.Int("count", 100, "scenarios to generate")
	laps := flag.Int("laps", 200, "race length in laps")
	seed := flag.Int64("seed", cfg.BaseSeed, "base seed; scenario i draws from seed+i")
	workers := flag.Int("workers", cfg.Workers, "parallel scenario workers")
	retries := flag.Int("retries", cfg.RetryBudget, "redraws per scenario before returning it invalid")
	deadline := flag.Duration("deadline", cfg.BatchDeadline, "wall-clock cap for the batch, 0 for none")
	grid := flag.String("grid", "", "comma-separated starting grid override")
	outPath := flag.String("out", "", "write the batch manifest to this path")
	showStats := flag.Bool("stats", false, "print per-driver outcome statistics")
	jsonOut := flag.Bool("json", false, "print diagnostics as JSON")
	flag.Parse()

	if *dbPath == "" || *ontologyPath == "" || *count < 1 || *laps < 1 {
		fmt.Fprintln(os.Stderr, "usage: simulate --ontology path/to/ontology.yaml [--db path] [--track id] [--count N] [--laps N] [--seed N] [--grid d1,d2,...] [--out manifest.json]")
		os.Exit(2)
	}

	cons, err := ontology.LoadArtifact(*ontologyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load ontology: %v\n", err)
		os.Exit(1)
	}
	trackID := *track
	if trackID == "" {
		trackID = cons.Track()
	}

	store, err := histdata.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	model, artifactID, err := loadModel(store, cons, trackID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		os.Exit(1)
	}

	acc := kernel.NewCountingAccumulator()
	kern := kernel.NewKernel(kernel.Config{
		SwapFieldFactor: cfg.SwapFieldFactor,
		SwapLapDivisor:  cfg.SwapLapDivisor,
	}, acc)

	gcfg := generate.DefaultConfig()
	gcfg.Workers = *workers
	gcfg.RetryBudget = *retries
	gcfg.BatchDeadline = *deadline

	gen, err := generate.New(model, cons, kern, gcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build generator: %v\n", err)
		os.Exit(1)
	}

	req := generate.Request{
		Track:      trackID,
		Count:      *count,
		RaceLength: *laps,
		Seed:       *seed,
		StartGrid:  parseGrid(*grid),
	}

	batch, err := gen.Generate(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	reasons := acc.Snapshot()
	var summary *stats.Summary
	if *showStats {
		s := stats.Summarize(batch.Scenarios, stats.DefaultConfig())
		summary = &s
	}

	if *jsonOut {
		if err := printDiagnosticsJSON(batch.Diagnostics, reasons, summary); err != nil {
			fmt.Fprintf(os.Stderr, "print diagnostics: %v\n", err)
			os.Exit(1)
		}
	} else {
		printDiagnostics(trackID, batch.Diagnostics, reasons)
		if summary != nil {
			printStats(*summary)
		}
	}

	if *outPath != "" {
		m := export.BuildManifest(req, batch)
		if err := export.WriteManifest(*outPath, m); err != nil {
			fmt.Fprintf(os.Stderr, "write manifest: %v\n", err)
			os.Exit(1)
		}
		log.Printf("[SIM] wrote %d scenarios to %s", len(m.Scenarios), *outPath)
	}

	reasonsJSON, _ := json.Marshal(reasons)
	_, err = logging.LogRun(store.DB(), logging.RunEntry{
		Kind:            "simulate",
		TrackID:         trackID,
		Seed:            *seed,
		Requested:       batch.Diagnostics.Requested,
		Returned:        batch.Diagnostics.Returned,
		Accepted:        batch.Diagnostics.Accepted,
		Rejected:        batch.Diagnostics.Rejected,
		ReasonsJSON:     string(reasonsJSON),
		ArtifactID:      artifactID,
		OntologyVersion: cons.Version(),
	})
	if err != nil {
		log.Printf("[SIM] run log error: %v", err)
	}
}

// #endregion main

// #region model-load

// loadModel restores the newest stored artifact for the track. Without
// one it fits from whatever history exists, falling back to prior-seeded
// defaults on an empty table.
func loadModel(store *histdata.Store, cons *ontology.Constraints, trackID string) (*causal.Model, string, error) {
	rec, err := store.LatestArtifact(trackID)
	if err == nil {
		model, err := causal.LoadModelArtifact(causal.DefaultRegistry(), rec.Payload)
		if err != nil {
			return nil, "", err
		}
		return model, rec.ArtifactID, nil
	}
	if !simerr.IsCode(err, simerr.CodeArtifactNotFound) {
		return nil, "", err
	}

	ds, err := store.LoadDataset(trackID)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[SIM] no stored model for %s, fitting from history (%d rows)", trackID, len(ds.Rows))
	model, err := causal.BuildModel(causal.DefaultRegistry(), ds, cons,
		causal.DefaultStructureConfig(), causal.DefaultFitConfig())
	if err != nil {
		return nil, "", err
	}
	return model, "", nil
}

// #endregion model-load

// #region output

func printDiagnostics(trackID string, d generate.Diagnostics, reasons map[string]int64) {
	fmt.Printf("Scenario batch: %s\n", trackID)
	fmt.Printf("  requested      %d\n", d.Requested)
	fmt.Printf("  returned       %d\n", d.Returned)
	fmt.Printf("  accepted       %d\n", d.Accepted)
	fmt.Printf("  rejected       %d\n", d.Rejected)
	fmt.Printf("  first attempt  %d\n", d.FirstAttempt)
	fmt.Printf("  acceptance     %.1f%%\n", d.AcceptanceRate()*100)
	fmt.Printf("  elapsed        %s\n", d.Elapsed)
	if d.DeadlineHit {
		fmt.Printf("  deadline hit   yes\n")
	}

	if len(d.RetryHistogram) > 0 {
		fmt.Println("Attempts:")
		attempts := make([]int, 0, len(d.RetryHistogram))
		for a := range d.RetryHistogram {
			attempts = append(attempts, a)
		}
		sort.Ints(attempts)
		for _, a := range attempts {
			fmt.Printf("  %2d  %d\n", a, d.RetryHistogram[a])
		}
	}

	if len(reasons) > 0 {
		fmt.Println("Veto reasons:")
		names := make([]string, 0, len(reasons))
		for name := range reasons {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-24s %d\n", name, reasons[name])
		}
	}
}

func printStats(s stats.Summary) {
	fmt.Printf("Driver outcomes (%d scenarios", s.Scenarios)
	if s.Skipped > 0 {
		fmt.Printf(", %d rejected drafts skipped", s.Skipped)
	}
	fmt.Println("):")
	fmt.Printf("  %-12s  %6s  %4s  %4s  %4s  %6s  %6s  %6s\n",
		"Driver", "AvgFin", "Wins", "Top5", "DNFs", "Led%", "Fast%", "Inc")
	for _, line := range s.Drivers {
		fmt.Printf("  %-12s  %6.2f  %4d  %4d  %4d  %5.1f%%  %5.1f%%  %6.2f\n",
			line.DriverID, line.AvgFinish, line.Wins, line.Top5, line.DNFs,
			line.LapsLedShare*100, line.FastestShare*100, line.AvgIncidents)
	}
}

func printDiagnosticsJSON(d generate.Diagnostics, reasons map[string]int64, summary *stats.Summary) error {
	out := struct {
		generate.Diagnostics
		AcceptanceRate float64          `json:"acceptance_rate"`
		VetoReasons    map[string]int64 `json:"veto_reasons,omitempty"`
		Stats          *stats.Summary   `json:"stats,omitempty"`
	}{d, d.AcceptanceRate(), reasons, summary}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output

// #region helpers

func parseGrid(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// #endregion helpers
