package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/shopscale-auth/internal/flagx"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file into the process environment (existing
// variables win) and then overlays every set variable onto config.
// A missing ./.env is fine; a missing explicit -env-file is not.
func parseEnv(config *Config, args []string) error {
	path := flagx.EnvFileFlags(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
