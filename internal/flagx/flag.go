// Package flagx lets several packages read their own command-line flags
// from os.Args without sharing flag.CommandLine.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags together with their
// values. Both "-f value" and "-f=value" forms are recognized; a following
// argument that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// stringFlag returns the value of a string flag known under a short and a
// long name. The last occurrence wins.
func stringFlag(short, long, usage string) string {
	var v string

	names := []string{"-" + long}
	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.StringVar(&v, long, "", usage)
	if short != "" && short != long {
		names = append(names, "-"+short)
		fs.StringVar(&v, short, "", usage+" (short)")
	}

	_ = fs.Parse(FilterArgs(os.Args[1:], names))

	return v
}

// JsonConfigFlags returns the JSON config file path passed with -c or
// -config, or an empty string.
func JsonConfigFlags() string {
	return stringFlag("c", "config", "Path to config file")
}

// EnvFileFlags returns the dotenv file path passed with -env-file, or an
// empty string.
func EnvFileFlags() string {
	return stringFlag("", "env-file", "Path to .env file")
}
