package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/shopscale-auth/internal/flagx"
)

// Flags lists every command-line flag consumed by Load, including the
// file selectors. Whatever remains in os.Args belongs to the caller.
var Flags = []string{"-n", "-e", "-d", "-s", "-g", "-t", "-c", "-config", "--config", "-env-file", "--env-file"}

// parseFlags overlays the flags it owns:
//
//	-n string   project name
//	-e string   environment (development|production)
//	-d string   database URL
//	-s string   token secret key
//	-g string   signing algorithm (HS256, HS384, HS512)
//	-t int      access token lifetime, minutes
//
// Unrelated arguments (CLI subcommands, -c, -env-file) are filtered out first.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-n", "-e", "-d", "-s", "-g", "-t"})

	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	fs.StringVar(&config.ProjectName, "n", config.ProjectName, "project name")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Algorithm, "g", config.Algorithm, "token signing algorithm")
	fs.IntVar(&config.AccessTokenExpireMinutes, "t", config.AccessTokenExpireMinutes, "access token lifetime (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
