package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/config"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/logging"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", cfg.DBPath, "path to the race history database")
	track := flag.String("track", "", "filter artifacts and runs to one track")
	runs := flag.Int("runs", 20, "show N most recent runs")
	artifacts := flag.Int("artifacts", 10, "show N most recent artifacts")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/race-sim.db [--track id] [--runs N] [--artifacts N] [--json]")
		os.Exit(2)
	}

	store, err := histdata.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := inspect(store, *track, *runs, *artifacts, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region inspect

type summary struct {
	Tracks    []histdata.TrackStats `json:"tracks"`
	Artifacts []artifactRow         `json:"artifacts"`
	Runs      []logging.RunEntry    `json:"runs"`
}

type artifactRow struct {
	ArtifactID string `json:"artifact_id"`
	TrackID    string `json:"track_id"`
	Edges      int    `json:"edges"`
	Degraded   bool   `json:"degraded"`
	CreatedAt  string `json:"created_at"`
}

func inspect(store *histdata.Store, track string, runLimit, artifactLimit int, jsonOut bool) error {
	tracks, err := store.Tracks()
	if err != nil {
		return err
	}
	if track != "" {
		filtered := tracks[:0]
		for _, ts := range tracks {
			if ts.TrackID == track {
				filtered = append(filtered, ts)
			}
		}
		tracks = filtered
	}

	recs, err := store.ListArtifacts(track, artifactLimit)
	if err != nil {
		return err
	}
	artifacts := make([]artifactRow, len(recs))
	for i, rec := range recs {
		row := artifactRow{
			ArtifactID: rec.ArtifactID,
			TrackID:    rec.TrackID,
			CreatedAt:  rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if rec.ReportJSON != "" {
			var report causal.FitReport
			if err := json.Unmarshal([]byte(rec.ReportJSON), &report); err == nil {
				row.Edges = report.Edges
				row.Degraded = report.Degraded
			}
		}
		artifacts[i] = row
	}

	allRuns, err := logging.ListRuns(store.DB(), runLimit)
	if err != nil {
		return err
	}
	runRows := allRuns
	if track != "" {
		runRows = runRows[:0]
		for _, r := range allRuns {
			if r.TrackID == track {
				runRows = append(runRows, r)
			}
		}
	}

	if jsonOut {
		return printJSON(summary{Tracks: tracks, Artifacts: artifacts, Runs: runRows})
	}
	printTables(tracks, artifacts, runRows)
	return nil
}

// #endregion inspect

// #region output

func printTables(tracks []histdata.TrackStats, artifacts []artifactRow, runs []logging.RunEntry) {
	fmt.Printf("%-16s  %6s  %6s\n", "Track", "Races", "Rows")
	fmt.Printf("%-16s+-%6s+-%6s\n", "----------------", "------", "------")
	for _, ts := range tracks {
		fmt.Printf("%-16s  %6d  %6d\n", ts.TrackID, ts.Races, ts.Rows)
	}
	if len(tracks) == 0 {
		fmt.Println("(no history)")
	}

	fmt.Printf("\n%-36s  %-16s  %5s  %-8s  %s\n", "Artifact", "Track", "Edges", "Degraded", "Created")
	fmt.Printf("%-36s+-%-16s+-%5s+-%-8s+-%s\n",
		"------------------------------------", "----------------", "-----", "--------", "--------------------")
	for _, a := range artifacts {
		degraded := "no"
		if a.Degraded {
			degraded = "yes"
		}
		fmt.Printf("%-36s  %-16s  %5d  %-8s  %s\n", a.ArtifactID, a.TrackID, a.Edges, degraded, a.CreatedAt)
	}
	if len(artifacts) == 0 {
		fmt.Println("(no artifacts)")
	}

	fmt.Printf("\n%-8s  %-9s  %-16s  %10s  %5s  %5s  %5s  %5s  %s\n",
		"Run", "Kind", "Track", "Seed", "Req", "Ret", "Acc", "Rej", "Created")
	fmt.Printf("%-8s+-%-9s+-%-16s+-%10s+-%5s+-%5s+-%5s+-%5s+-%s\n",
		"--------", "---------", "----------------", "----------", "-----", "-----", "-----", "-----", "--------------------")
	for _, r := range runs {
		fmt.Printf("%-8s  %-9s  %-16s  %10d  %5d  %5d  %5d  %5d  %s\n",
			shortID(r.RunID), r.Kind, r.TrackID, r.Seed,
			r.Requested, r.Returned, r.Accepted, r.Rejected,
			r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	if len(runs) == 0 {
		fmt.Println("(no runs)")
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
