package main

import (
	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/api"
	"github.com/faro-networks/faro/pkg/sched"
	"github.com/faro-networks/faro/pkg/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and background loops",
	Long: `Run the engine: the REST API, the periodic fleet backup sweep, and
the golden-image push queue.

Examples:
  faro serve
  FARO_LISTEN_ADDR=:9000 faro serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		scheduler := sched.New(engine)
		scheduler.BackupInterval = cfg.BackupInterval
		scheduler.JobPoll = cfg.JobPoll
		scheduler.Start()
		defer scheduler.Stop()

		server := api.NewServer(engine, cfg.JWTSecret, cfg.TokenTTL)
		util.Infof("Listening on %s", cfg.ListenAddr)
		return server.Router().Run(cfg.ListenAddr)
	},
}
