package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/config"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/export"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/generate"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/replay"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	manifestPath := flag.String("manifest", "", "path to a batch manifest JSON")
	dbPath := flag.String("db", cfg.DBPath, "path to the race history database")
	ontologyPath := flag.String("ontology", cfg.OntologyPath, "path to the ontology YAML artifact")
	workers := flag.Int("workers", cfg.Workers, "parallel scenario workers")
	retries := flag.Int("retries", cfg.RetryBudget, "redraws per scenario before returning it invalid")
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --manifest path/to/manifest.json [--db path] [--ontology path]")
		os.Exit(2)
	}

	os.Exit(run(*manifestPath, *dbPath, *ontologyPath, *workers, *retries))
}

// #endregion main

// #region replay

func run(manifestPath, dbPath, ontologyPath string, workers, retries int) int {
	m, err := export.ReadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read manifest: %v\n", err)
		return 2
	}

	cons, err := ontology.LoadArtifact(ontologyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load ontology: %v\n", err)
		return 2
	}

	store, err := histdata.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	model, _, err := loadModel(store, cons, m.Track)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		return 2
	}

	kern := kernel.NewKernel(kernel.DefaultConfig(), nil)
	gcfg := generate.DefaultConfig()
	gcfg.Workers = workers
	gcfg.RetryBudget = retries
	gcfg.BatchDeadline = 0 // a replay is never cut short

	gen, err := generate.New(model, cons, kern, gcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build generator: %v\n", err)
		return 2
	}

	req := generate.Request{
		Track:      m.Track,
		Count:      m.Count,
		RaceLength: m.RaceLength,
		Seed:       m.Seed,
		StartGrid:  m.StartGrid,
	}
	batch, err := gen.Generate(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 2
	}

	if len(m.Scenarios) < m.Count {
		log.Printf("[REPLAY] manifest holds %d of %d requested scenarios, comparing %d",
			len(m.Scenarios), m.Count, len(m.Scenarios))
	}

	cmp, err := replay.Compare(m.Scenarios, batch.Scenarios)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compare: %v\n", err)
		return 2
	}
	return printComparison(m.Scenarios, batch.Scenarios, cmp)
}

// #endregion replay

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
	log.Printf("[REPLAY] no stored model for %s, fitting from history (%d rows)", trackID, len(ds.Rows))
	model, err := causal.BuildModel(causal.DefaultRegistry(), ds, cons,
		causal.DefaultStructureConfig(), causal.DefaultFitConfig())
	if err != nil {
		return nil, "", err
	}
	return model, "", nil
}

// #endregion model-load

// #region output

// printComparison outputs a per-scenario comparison table and returns
// the exit code: 0 on a byte-exact replay, 1 on any divergence.
func printComparison(stored []map[string]interface{}, replayed []scenario.Components, cmp replay.Comparison) int {
	diffs := make(map[int]replay.Divergence, len(cmp.Divergences))
	for _, d := range cmp.Divergences {
		diffs[d.Index] = d
	}

	fmt.Printf("%-10s| %-10s| %-10s| %s\n", "Scenario", "Stored", "Replayed", "Match")
	fmt.Printf("%-10s+%-11s+%-11s+%s\n",
		"----------", "-----------", "-----------", "------")

	for i := 0; i < cmp.Total; i++ {
		match := "OK"
		if _, ok := diffs[i]; ok {
			match = "DIFF"
		}
		fmt.Printf("%-10d| %-10s| %-10s| %s\n",
			i, acceptedLabel(stored[i]), acceptedLabel(export.Flatten(replayed[i])), match)
		if d, ok := diffs[i]; ok {
			fmt.Printf("           %s: stored %s, replayed %s\n", d.Field, d.Stored, d.Replayed)
		}
	}

	diverge := cmp.Total - cmp.Matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", cmp.Total, cmp.Matches, diverge)

	if cmp.Diverged() {
		return 1
	}
	return 0
}

func acceptedLabel(rec map[string]interface{}) string {
	if b, ok := rec["meta.accepted"].(bool); ok && b {
		return "valid"
	}
	return "invalid"
}

// #endregion output
