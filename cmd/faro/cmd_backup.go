package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Capture and inspect configuration snapshots",
}

var backupRunCmd = &cobra.Command{
	Use:   "run <device-id>",
	Short: "Capture a device's configuration now",
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
		snap, err := engine.RunBackup(context.Background(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot %d captured at %s\n", snap.ID, msTime(snap.CapturedAt))
		fmt.Printf("  export %s (%s)\n", snap.ExportPath, snap.ExportHash[:12])
		if snap.BinaryPath != "" {
			fmt.Printf("  binary %s\n", snap.BinaryPath)
		}
		if snap.DiffPath != "" {
			fmt.Printf("  diff   %s\n", snap.DiffPath)
		}
		return nil
	},
}

var backupAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Capture every device in turn",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		devices, err := engine.Store.ListDevices()
		if err != nil {
			return err
		}

		var failed int
		for i := range devices {
			dev := &devices[i]
			if _, err := engine.RunBackup(context.Background(), dev.ID); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", dev.IP, err)
				failed++
				continue
			}
			fmt.Printf("%s: captured\n", dev.IP)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d devices failed", failed, len(devices))
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list <device-id>",
	Short: "List a device's snapshot history",
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
		snaps, err := engine.Store.SnapshotsByDevice(id)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCAPTURED\tHASH\tBINARY\tDIFF")
		for _, s := range snaps {
			binary, diff := "-", "-"
			if s.BinaryPath != "" {
				binary = "yes"
			}
			if s.DiffPath != "" {
				diff = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, msTime(s.CapturedAt), s.ExportHash[:12], binary, diff)
		}
		return w.Flush()
	},
}

var backupDiffCmd = &cobra.Command{
	Use:   "diff <snapshot-id>",
	Short: "Print the diff a snapshot introduced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "snapshot")
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		snap, err := engine.Store.SnapshotByID(id)
		if err != nil {
			return err
		}
		if snap.DiffPath == "" {
			fmt.Println("First capture for this device; no predecessor to diff against.")
			return nil
		}
		data, err := os.ReadFile(snap.DiffPath)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Println("No changes since the previous capture.")
			return nil
		}
		cmd.OutOrStdout().Write(data)
		return nil
	},
}

func parseID(raw, what string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return uint(id), nil
}

func msTime(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func init() {
	backupCmd.AddCommand(backupRunCmd, backupAllCmd, backupListCmd, backupDiffCmd)
}
