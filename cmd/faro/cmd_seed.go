package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/seed"
	"github.com/faro-networks/faro/pkg/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load users, sites, and credentials from a YAML file",
	Long: `Load bootstrap data from a YAML file. Re-running is safe: existing
sites and credentials are skipped, user passwords are refreshed.

Example file:

  users:
    - username: admin
      password: change-me
      role: ADMIN
  sites:
    - name: Centro
      location: Av. Principal 100
  credentials:
    - name: routers
      username: admin
      secret: device-password`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		report, err := seed.Apply(s, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d users, %d sites, %d credentials\n",
			report.Users, report.Sites, report.Credentials)
		return nil
	},
}
