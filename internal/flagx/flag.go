// Package flagx lets several configuration layers each parse only the
// command-line flags they own from a shared os.Args.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
// Both "-f value" and "-f=value" forms are recognized; a separate value is
// taken only if it does not itself start with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFileFlags extracts the JSON config path given via -c or -config.
// It returns "" when neither is present.
func ConfigFileFlags(args []string) string {
	return stringFlag(args, "config", "c")
}

// EnvFileFlags extracts the dotenv path given via -env-file. It returns ""
// when the flag is absent.
func EnvFileFlags(args []string) string {
	return stringFlag(args, "env-file", "")
}

func stringFlag(args []string, long, short string) string {
	var value string

	names := []string{"-" + long, "--" + long}
	if short != "" {
		names = append(names, "-"+short, "--"+short)
	}

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.StringVar(&value, long, "", long)
	if short != "" {
		fs.StringVar(&value, short, "", long+" (short)")
	}
	_ = fs.Parse(FilterArgs(args, names))

	return value
}

// StripArgs is the complement of FilterArgs: it drops the given flags (and
// their values) and returns everything else, e.g. positional subcommands.
func StripArgs(args []string, flags []string) []string {
	drop := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		drop[f] = struct{}{}
	}

	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := drop[name]; ok {
				continue
			}
			rest = append(rest, arg)
			continue
		}

		if _, ok := drop[arg]; !ok {
			rest = append(rest, arg)
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}

	return rest
}
