package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/shopscale-auth/internal/flagx"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields distinguish "absent" from zero so a partial file only overrides
// what it names.
type JsonConfig struct {
	ProjectName              *string `json:"project_name"`
	Environment              *string `json:"app_env"`
	DatabaseDSN              *string `json:"database_url"`
	SecretKey                *string `json:"secret_key"`
	Algorithm                *string `json:"algorithm"`
	AccessTokenExpireMinutes *int    `json:"access_token_expire_minutes"`
	TokenLeewaySeconds       *int    `json:"token_leeway_seconds"`
	DBMaxOpenConns           *int    `json:"db_max_open_conns"`
	DBMaxIdleConns           *int    `json:"db_max_idle_conns"`
	DBConnMaxLifetimeMinutes *int    `json:"db_conn_max_lifetime_minutes"`
	HashWorkers              *int    `json:"hash_workers"`
	Argon2MemoryKiB          *uint32 `json:"argon2_memory_kib"`
	Argon2Iterations         *uint32 `json:"argon2_iterations"`
	Argon2Parallelism        *uint8  `json:"argon2_parallelism"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlags(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setIf(&config.ProjectName, c.ProjectName)
	setIf(&config.Environment, c.Environment)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.Algorithm, c.Algorithm)
	setIf(&config.AccessTokenExpireMinutes, c.AccessTokenExpireMinutes)
	setIf(&config.TokenLeewaySeconds, c.TokenLeewaySeconds)
	setIf(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setIf(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setIf(&config.DBConnMaxLifetimeMinutes, c.DBConnMaxLifetimeMinutes)
	setIf(&config.HashWorkers, c.HashWorkers)
	setIf(&config.Argon2MemoryKiB, c.Argon2MemoryKiB)
	setIf(&config.Argon2Iterations, c.Argon2Iterations)
	setIf(&config.Argon2Parallelism, c.Argon2Parallelism)

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
