package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/inventory"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Inspect and reconcile port inventory",
}

var portsListCmd = &cobra.Command{
	Use:   "list <device-id>",
	Short: "List a device's port inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "device")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		ports, err := engine.Store.PortsByDevice(id)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPORT\tDESCRIPTION\tSTATUS")
		for _, p := range ports {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.PhysicalName, p.Description, p.Status)
		}
		return w.Flush()
	},
}

var portsSyncCmd = &cobra.Command{
	Use:   "sync <device-id>",
	Short: "Reconcile port inventory with what the device reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "device")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		report, err := engine.SyncPorts(context.Background(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Sync complete: %d added, %d updated, %d unchanged, %d client-bound left alone\n",
			report.Added, report.Updated, report.Unchanged, report.Protected)
		return nil
	},
}

var portsBindCmd = &cobra.Command{
	Use:   "bind <port-id>",
	Short: "Bind a port to a client service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "port")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		if err := inventory.New(engine.Store).BindPortToClient(id); err != nil {
			return err
		}
		fmt.Println("Port bound; resync will no longer touch its status.")
		return nil
	},
}

var portsReleaseCmd = &cobra.Command{
	Use:   "release <port-id>",
	Short: "Release a port's client binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "port")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		if err := inventory.New(engine.Store).ReleaseClientBinding(id); err != nil {
			return err
		}
		fmt.Println("Port released; the next sync settles its status.")
		return nil
	},
}

func init() {
	portsCmd.AddCommand(portsListCmd, portsSyncCmd, portsBindCmd, portsReleaseCmd)
}
