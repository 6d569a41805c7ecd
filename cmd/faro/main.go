// Faro - Device Synchronization & Configuration Versioning Engine
//
// Faro keeps a fleet of access routers and switches in sync with its
// inventory: it discovers hardware facts over SSH, versions every
// device's configuration in a content-addressed archive, reconciles
// port and limiter inventory, and serves the whole thing over a REST
// API.
//
//	faro serve                          # run the API + background loops
//	faro device add 10.0.0.1 ...        # onboard a device
//	faro backup run 3                   # capture device 3 now
//	faro ports sync 3                   # refresh port inventory
//	faro seed seed.yaml                 # load users/sites/credentials
package main

import (
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/archive"
	"github.com/faro-networks/faro/pkg/config"
	"github.com/faro-networks/faro/pkg/fleet"
	"github.com/faro-networks/faro/pkg/lock"
	"github.com/faro-networks/faro/pkg/session"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

var (
	verbose bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "faro",
	Short:         "Device synchronization and configuration versioning engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Faro manages a fleet of access routers and switches: SSH discovery,
versioned configuration backups with diffs, and port/limiter inventory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		if verbose {
			_ = util.SetLogLevel("debug")
		} else if err := util.SetLogLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		if cfg.LogJSON {
			util.SetJSONFormat()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		serveCmd,
		deviceCmd,
		backupCmd,
		portsCmd,
		limiterCmd,
		credentialCmd,
		seedCmd,
		versionCmd,
	)
}

// newEngine assembles the engine from the loaded config. The redis
// locker is only used when redis_addr is set; a single instance gets by
// with in-process locks.
func newEngine() (*fleet.Engine, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var locker lock.Locker = lock.NewKeyed()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		host, _ := os.Hostname()
		locker = lock.NewRedisLocker(client, fmt.Sprintf("%s-%d", host, os.Getpid()), cfg.LockTTL)
	}

	opts := session.Options{
		ConnectTimeout:  cfg.ConnectTimeout,
		CommandTimeout:  cfg.CommandTimeout,
		TransferTimeout: cfg.TransferTimeout,
	}
	return fleet.New(s, archive.New(cfg.ArchiveDir), locker, cfg.ImageDir, opts), nil
}
