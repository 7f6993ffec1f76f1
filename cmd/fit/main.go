package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/config"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/logging"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
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
	track := flag.String("track", "", "track to fit (defaults to the ontology's track)")
	seedRaces := flag.Int("seed-races", 0, "seed N demo races into the history before fitting")
	seed := flag.Int64("seed", cfg.BaseSeed, "rng seed for demo data")
	jsonOut := flag.Bool("json", false, "print the fit report as JSON")
	flag.Parse()

	if *dbPath == "" || *ontologyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fit --ontology path/to/ontology.yaml [--db path] [--track id] [--seed-races N] [--seed N] [--json]")
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

	if *seedRaces > 0 {
		rng := rand.New(rand.NewSource(*seed))
		n, err := histdata.SeedDemo(store, rng, trackID, *seedRaces, cons.FieldSize())
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed demo data: %v\n", err)
			os.Exit(1)
		}
		log.Printf("[FIT] seeded %d demo rows for %s", n, trackID)
	}

	ds, err := store.LoadDataset(trackID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load dataset: %v\n", err)
		os.Exit(1)
	}

	model, err := causal.BuildModel(causal.DefaultRegistry(), ds, cons,
		causal.DefaultStructureConfig(), causal.DefaultFitConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit model: %v\n", err)
		os.Exit(1)
	}
	report := model.Report()

	payload, err := model.MarshalArtifact()
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal artifact: %v\n", err)
		os.Exit(1)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal report: %v\n", err)
		os.Exit(1)
	}

	rec, err := store.SaveArtifact(trackID, payload, string(reportJSON))
	if err != nil {
		fmt.Fprintf(os.Stderr, "save artifact: %v\n", err)
		os.Exit(1)
	}

	// The requested column doubles as the history row count for fit runs.
	entry := logging.RunEntry{
		Kind:            "fit",
		TrackID:         trackID,
		Seed:            *seed,
		Requested:       report.Rows,
		Returned:        report.Rows,
		ArtifactID:      rec.ArtifactID,
		OntologyVersion: cons.Version(),
	}
	if report.Degraded {
		reasons, _ := json.Marshal(map[string]string{"degraded": report.DegradedReason})
		entry.ReasonsJSON = string(reasons)
	}
	runID, err := logging.LogRun(store.DB(), entry)
	if err != nil {
		log.Printf("[FIT] run log error: %v", err)
	}

	if *jsonOut {
		if err := printReportJSON(report, rec.ArtifactID, runID, cons.Version()); err != nil {
			fmt.Fprintf(os.Stderr, "print report: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printReport(report, rec.ArtifactID, runID, trackID, cons.Version())
}

// #endregion main

// #region report

func printReport(r causal.FitReport, artifactID, runID, trackID, version string) {
	fmt.Printf("Fit complete: %s\n", trackID)
	fmt.Printf("  rows      %d\n", r.Rows)
	fmt.Printf("  edges     %d\n", r.Edges)
	if r.Degraded {
		fmt.Printf("  degraded  yes (%s)\n", r.DegradedReason)
	} else {
		fmt.Printf("  degraded  no\n")
	}
	if len(r.DefaultFilled) > 0 {
		fmt.Printf("  defaults  %s\n", strings.Join(r.DefaultFilled, ", "))
	}
	fmt.Printf("  artifact  %s\n", artifactID)
	fmt.Printf("  ontology  %s\n", version)
	fmt.Printf("  run       %s\n", runID)
}

func printReportJSON(r causal.FitReport, artifactID, runID, version string) error {
	out := struct {
		causal.FitReport
		ArtifactID      string `json:"artifact_id"`
		RunID           string `json:"run_id"`
		OntologyVersion string `json:"ontology_version"`
	}{r, artifactID, runID, version}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// #endregion report
