package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faro-networks/faro/pkg/store"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage device SSH credentials",
}

var credentialUser string

var credentialAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a credential; the secret is prompted, never passed on the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Secret for %s@%s: ", credentialUser, args[0])
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		if len(secret) == 0 {
			return fmt.Errorf("empty secret")
		}

		cred := &store.Credential{Name: args[0], Username: credentialUser, Secret: string(secret)}
		if err := engine.Store.CreateCredential(cred); err != nil {
			return err
		}
		fmt.Printf("Credential %d created: %s\n", cred.ID, cred.Name)
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials (secrets are never printed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		creds, err := engine.Store.ListCredentials()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUSERNAME")
		for _, c := range creds {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Username)
		}
		return w.Flush()
	},
}

func init() {
	credentialAddCmd.Flags().StringVar(&credentialUser, "user", "admin", "SSH username")
	credentialCmd.AddCommand(credentialAddCmd, credentialListCmd)
}
