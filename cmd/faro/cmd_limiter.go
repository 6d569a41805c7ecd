package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/driver"
)

var limiterCmd = &cobra.Command{
	Use:   "limiter",
	Short: "Manage bandwidth limiters",
}

var limiterListCmd = &cobra.Command{
	Use:   "list <device-id>",
	Short: "List a device's limiter rules",
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
		limiters, err := engine.Store.LimitersByDevice(id)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBANDWIDTH\tTARGET")
		for _, l := range limiters {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, l.Name, l.Bandwidth, l.TargetPort)
		}
		return w.Flush()
	},
}

var (
	limiterBandwidth string
	limiterTarget    string
)

var limiterAddCmd = &cobra.Command{
	Use:     "add <device-id> <name>",
	Short:   "Create a limiter on the device and record it",
	Args:    cobra.ExactArgs(2),
	Example: `  faro limiter add 3 CLIENTE-A --bandwidth 10M --target ether3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "device")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		row, err := engine.CreateLimiter(context.Background(), id, driver.LimiterSpec{
			Name:      args[1],
			Bandwidth: limiterBandwidth,
			Target:    limiterTarget,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Limiter %d created: %s %s on %s\n", row.ID, row.Name, row.Bandwidth, row.TargetPort)
		return nil
	},
}

var limiterRemoveCmd = &cobra.Command{
	Use:   "remove <limiter-id>",
	Short: "Remove a limiter from the device and the inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "limiter")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		if err := engine.DeleteLimiter(context.Background(), id); err != nil {
			return err
		}
		fmt.Println("Limiter removed.")
		return nil
	},
}

func init() {
	limiterAddCmd.Flags().StringVar(&limiterBandwidth, "bandwidth", "", "Rate limit, e.g. 10M")
	limiterAddCmd.Flags().StringVar(&limiterTarget, "target", "", "Port or address the limit applies to")
	_ = limiterAddCmd.MarkFlagRequired("bandwidth")
	_ = limiterAddCmd.MarkFlagRequired("target")

	limiterCmd.AddCommand(limiterListCmd, limiterAddCmd, limiterRemoveCmd)
}
