package main

import (
	"fmt"

	"github.com/CodedInternet/emmdiag/onboard"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/spf13/cobra"
)

// checkCmd builds a command running one single check against one address.
func checkCmd(use, short string, check func(d *onboard.Device, addr uint8) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <addr>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			return withDevice(func(d *onboard.Device) error {
				return check(d, addr)
			})
		},
	}
}

var connectionCmd = checkCmd("connection", "Read the firmware version to check the driver answers",
	func(d *onboard.Device, addr uint8) error { return d.Tester.Connection(addr) })

var enableCmd = checkCmd("enable", "Enable the driver and check the acknowledgement",
	func(d *onboard.Device, addr uint8) error { return d.Tester.Enable(addr) })

var statusCmd = checkCmd("status", "Read the enable, in position and stall flags",
	func(d *onboard.Device, addr uint8) error { return d.Tester.ReadStatus(addr) })

var moveCmd = checkCmd("move", "Run the motor briefly in velocity mode, then stop and disable it",
	func(d *onboard.Device, addr uint8) error { return d.Tester.SmallMove(addr) })

var completeCmd = &cobra.Command{
	Use:   "complete <addr>",
	Short: "Run every check against one motor",
	Long: `Complete runs the connection, enable, status and move checks in order.
A failed connection skips the rest. The motor will turn briefly: make
sure the arm is in a safe position.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		return withDevice(func(d *onboard.Device) error {
			if stats := d.Tester.Complete(addr); !stats.Passed() {
				return fmt.Errorf("motor %d: %d test(s) failed", addr, stats.Fail)
			}
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [first [last]]",
	Short: "Check the connection of every motor in a range",
	Long: `Scan runs the connection check on each address from first to last.
Without arguments it scans the range from the config file, with one
address it checks just that motor.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *onboard.Device) error {
			first, last, err := scanRange(d.Config.Addresses, args)
			if err != nil {
				return err
			}

			stats := d.Tester.AllConnections(first, last)
			if stats.Success < stats.Total {
				return fmt.Errorf("%d of %d motors did not answer", stats.Total-stats.Success, stats.Total)
			}
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:       "read <addr> <param>",
	Short:     "Read a system parameter and print the raw reply",
	Args:      cobra.ExactArgs(2),
	ValidArgs: hardware.SysParamNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		param, err := hardware.ParseSysParam(args[1])
		if err != nil {
			return err
		}
		return withDevice(func(d *onboard.Device) error {
			_, err := d.Tester.ReadParam(addr, param)
			return err
		})
	},
}

// scanRange picks the addresses a scan covers: the configured range without arguments,
// a single address with one, first and last with two.
func scanRange(configured onboard.AddressRange, args []string) (first, last uint8, err error) {
	switch len(args) {
	case 0:
		return configured.First, configured.Last, nil
	case 1:
		first, err = parseAddr(args[0])
		return first, first, err
	case 2:
		if first, err = parseAddr(args[0]); err != nil {
			return
		}
		last, err = parseAddr(args[1])
		return
	}
	return 0, 0, fmt.Errorf("scan takes at most two addresses, got %d", len(args))
}

func init() {
	rootCmd.AddCommand(connectionCmd, enableCmd, statusCmd, moveCmd, completeCmd, scanCmd, readCmd)
}
