package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/accounts/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   secret key
//	-m int      failed attempts before lockout
//	-l int      lockout window, minutes
//	-u string   public base URL used in emailed links
//
// Arguments are filtered with flagx.FilterArgs first so flags owned by other
// components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-m", "-l", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to serve HTTP")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port for the gRPC health probe")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.MaxFailedAttempts, "m", config.MaxFailedAttempts, "failed login attempts before lockout")
	lockout := fs.Int("l", int(config.LockoutTime.Minutes()), "lockout window (in minutes)")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LockoutTime = time.Duration(*lockout) * time.Minute
}
