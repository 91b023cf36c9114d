package main

import (
	"errors"
	"fmt"

	"github.com/CodedInternet/emmdiag/onboard"
	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/CodedInternet/emmdiag/onboard/motortest"
	"github.com/abiosoft/ishell"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive diagnostic shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(func(d *onboard.Device) error {
			newShell(d).Start()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func shellAddr(c *ishell.Context) (uint8, bool) {
	if len(c.Args) < 1 {
		c.Err(errors.New("missing motor address"))
		return 0, false
	}
	addr, err := parseAddr(c.Args[0])
	if err != nil {
		c.Err(err)
		return 0, false
	}
	return addr, true
}

// claim holds the tester for one shell command. A check already running, for example
// one started over HTTP, is reported rather than waited for.
func claim(c *ishell.Context, tester *motortest.Tester) (*motortest.Session, bool) {
	sess, ok := tester.TryLock()
	if !ok {
		c.Err(derrors.ErrBusy)
	}
	return sess, ok
}

func newShell(d *onboard.Device) *ishell.Shell {
	tester := d.Tester

	shell := ishell.New()
	shell.Println("Emm_V5 diagnostic shell")
	if d.Simulated {
		shell.Println("Running against a simulated arm")
	}

	single := func(name, help string, check func(sess *motortest.Session, addr uint8) error) *ishell.Cmd {
		return &ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(c *ishell.Context) {
				addr, ok := shellAddr(c)
				if !ok {
					return
				}
				sess, ok := claim(c, tester)
				if !ok {
					return
				}
				defer sess.Unlock()

				// failures are already narrated by the check
				check(sess, addr)
			},
		}
	}

	shell.AddCmd(single("conn", "conn <addr>", (*motortest.Session).Connection))
	shell.AddCmd(single("enable", "enable <addr>", (*motortest.Session).Enable))
	shell.AddCmd(single("status", "status <addr>", (*motortest.Session).ReadStatus))
	shell.AddCmd(single("move", "move <addr>  (the motor turns briefly)", (*motortest.Session).SmallMove))

	shell.AddCmd(&ishell.Cmd{
		Name: "complete",
		Help: "complete <addr>",
		Func: func(c *ishell.Context) {
			addr, ok := shellAddr(c)
			if !ok {
				return
			}
			sess, ok := claim(c, tester)
			if !ok {
				return
			}
			defer sess.Unlock()

			sess.Complete(addr)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "scan",
		Help: "scan [first [last]]",
		Func: func(c *ishell.Context) {
			first, last, err := scanRange(d.Config.Addresses, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sess, ok := claim(c, tester)
			if !ok {
				return
			}
			defer sess.Unlock()

			sess.AllConnections(first, last)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "read",
		Help:      fmt.Sprintf("read <addr> <param>  params: %v", hardware.SysParamNames()),
		Completer: func([]string) []string { return hardware.SysParamNames() },
		Func: func(c *ishell.Context) {
			addr, ok := shellAddr(c)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(errors.New("missing parameter name"))
				return
			}
			param, err := hardware.ParseSysParam(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			sess, ok := claim(c, tester)
			if !ok {
				return
			}
			defer sess.Unlock()

			sess.ReadParam(addr, param)
		},
	})

	return shell
}
