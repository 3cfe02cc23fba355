package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/schoolkeeper/internal/flagx"
)

var knownFlags = []string{"-l", "-d", "-g", "-i", "-t", "-s", "-m", "-v", "-u", "-p", "-b", "-r", "-e"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-l string   local SQLite file
//	-d string   remote PostgreSQL DSN
//	-g string   gRPC health endpoint address
//	-i int      online check interval in seconds
//	-t int      probe timeout in seconds
//	-s bool     sync automatically after reconnecting
//	-m string   metrics listen address
//	-v string   log level
//	-u -p -b -r -e string   S3 user, password, bucket, region, endpoint
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags, "-s")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.LocalDBPath, "l", cfg.LocalDBPath, "local database file")
	fs.StringVar(&cfg.RemoteDSN, "d", cfg.RemoteDSN, "remote database DSN")
	fs.StringVar(&cfg.HealthEndpointAddr, "g", cfg.HealthEndpointAddr, "gRPC health endpoint address")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	probeTimeout := fs.Int("t", int(cfg.ProbeTimeout.Seconds()), "probe timeout (in seconds)")
	fs.BoolVar(&cfg.AutoSync, "s", cfg.AutoSync, "sync automatically after reconnecting")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.S3RootUser, "u", cfg.S3RootUser, "S3 access key")
	fs.StringVar(&cfg.S3RootPassword, "p", cfg.S3RootPassword, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket for backups")
	fs.StringVar(&cfg.S3Region, "r", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.ProbeTimeout = time.Duration(*probeTimeout) * time.Second
}
