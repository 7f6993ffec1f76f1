package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// #region engine-config

// EngineConfig carries process-level defaults shared by the cmds.
// Flags override anything parsed here.
type EngineConfig struct {
	DBPath          string        `env:"SIM_DB_PATH"           envDefault:"race-sim.db"`
	OntologyPath    string        `env:"SIM_ONTOLOGY_PATH"     envDefault:"ontology.yaml"`
	Workers         int           `env:"SIM_WORKERS"           envDefault:"4"`
	RetryBudget     int           `env:"SIM_RETRY_BUDGET"      envDefault:"8"`
	BaseSeed        int64         `env:"SIM_BASE_SEED"         envDefault:"1"`
	BatchDeadline   time.Duration `env:"SIM_BATCH_DEADLINE"    envDefault:"30s"`
	SwapFieldFactor int           `env:"SIM_SWAP_FIELD_FACTOR" envDefault:"2"`
	SwapLapDivisor  int           `env:"SIM_SWAP_LAP_DIVISOR"  envDefault:"10"`
}

// LoadFromEnv returns engine configuration from SIM_* variables with
// defaults applied.
func LoadFromEnv() (EngineConfig, error) {
	var cfg EngineConfig
	if err := env.Parse(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// #endregion engine-config
