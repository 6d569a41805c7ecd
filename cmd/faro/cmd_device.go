package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faro-networks/faro/pkg/fleet"
	"github.com/faro-networks/faro/pkg/store"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage the device fleet",
}

var (
	deviceDialect    string
	deviceRole       string
	deviceCredential uint
	deviceSite       uint
)

var deviceAddCmd = &cobra.Command{
	Use:   "add <ip>",
	Short: "Onboard a device: register, discover, and take the first backup",
	Args:  cobra.ExactArgs(1),
	Example: `  faro device add 10.0.0.1 --dialect routeros --credential 1
  faro device add 10.0.1.1 --dialect switchos --credential 2 --site 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		req := fleet.AddDeviceRequest{
			IP:           args[0],
			Dialect:      store.Dialect(deviceDialect),
			Role:         store.Role(deviceRole),
			CredentialID: deviceCredential,
		}
		if deviceSite != 0 {
			req.SiteID = &deviceSite
		}

		dev, err := engine.AddDevice(context.Background(), req)
		if err != nil {
			return err
		}
		fmt.Printf("Device %d registered: %s (%s)\n", dev.ID, dev.IP, dev.Dialect)
		fmt.Printf("  chassis %s, serial %s, firmware %s\n", dev.Chassis, dev.Serial, dev.Firmware)
		return nil
	},
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		devices, err := engine.Store.ListDevices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tIP\tHOSTNAME\tDIALECT\tCHASSIS\tFIRMWARE")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.IP, d.Hostname, d.Dialect, d.Chassis, d.Firmware)
		}
		return w.Flush()
	},
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a device record (its snapshot history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid device id %q", args[0])
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		dev, err := engine.Store.DeviceByID(uint(id))
		if err != nil {
			return err
		}
		if err := engine.Store.DeleteDevice(dev.ID); err != nil {
			return err
		}
		fmt.Printf("Device %s removed; snapshot history kept\n", dev.IP)
		return nil
	},
}

var deviceDiagnoseCmd = &cobra.Command{
	Use:   "diagnose <id> <action>",
	Short: "Run an on-demand diagnostic: port, communication, cpu, memory, or logs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid device id %q", args[0])
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		out, err := engine.Diagnose(context.Background(), uint(id), args[1])
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	deviceAddCmd.Flags().StringVar(&deviceDialect, "dialect", "", "Device dialect: routeros or switchos")
	deviceAddCmd.Flags().StringVar(&deviceRole, "role", "", "Device role: node or client")
	deviceAddCmd.Flags().UintVar(&deviceCredential, "credential", 0, "Credential ID for SSH access")
	deviceAddCmd.Flags().UintVar(&deviceSite, "site", 0, "Site ID")
	_ = deviceAddCmd.MarkFlagRequired("dialect")
	_ = deviceAddCmd.MarkFlagRequired("credential")

	deviceCmd.AddCommand(deviceAddCmd, deviceListCmd, deviceRemoveCmd, deviceDiagnoseCmd)
}
