package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/CodedInternet/emmdiag/onboard"
	"github.com/CodedInternet/emmdiag/onboard/motortest"
	"github.com/caarlos0/env/v6"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type EnvConfig struct {
	CONFIG string `env:"EMMDIAG_CONFIG" envDefault:"./emmdiag.yaml"`
	BUS    string `env:"EMMDIAG_BUS"`
	SIM    bool   `env:"EMMDIAG_SIM" envDefault:"false"`
	DEBUG  bool   `env:"EMMDIAG_DEBUG" envDefault:"false"`
}

var (
	ENV = new(EnvConfig)
)

var rootCmd = &cobra.Command{
	Use:   "emmdiag",
	Short: "Emm_V5 stepper driver diagnostics for the arm",
	Long: `emmdiag checks the Emm_V5 drivers of a six axis arm over CAN.
Each check sends one command, waits for one reply or a timeout and
reports what happened. Motor addresses are 1-6.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(ENV.DEBUG)
	},
}

func init() {
	if err := env.Parse(ENV); err != nil {
		fmt.Fprintln(os.Stderr, "bad environment:", err)
		os.Exit(2)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ENV.CONFIG, "config", "c", ENV.CONFIG, "config file")
	flags.StringVar(&ENV.BUS, "bus", ENV.BUS, "can interface, overrides the config file")
	flags.BoolVar(&ENV.SIM, "sim", ENV.SIM, "run against a simulated arm")
	flags.BoolVar(&ENV.DEBUG, "debug", ENV.DEBUG, "log every frame")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func loadConfig() (config onboard.DiagConfig, err error) {
	config, err = onboard.LoadConfig(ENV.CONFIG)
	if err != nil {
		return
	}
	if ENV.BUS != "" {
		config.Bus = ENV.BUS
	}
	return
}

func openDevice() (*onboard.Device, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return onboard.NewDevice(config, ENV.SIM, os.Stdout)
}

// withDevice opens the device for the duration of f.
func withDevice(f func(d *onboard.Device) error) error {
	d, err := openDevice()
	if err != nil {
		return err
	}
	defer d.Close()

	return f(d)
}

// parseAddr accepts decimal or 0x prefixed motor addresses.
func parseAddr(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad motor address %q", s)
	}
	if err := motortest.ValidAddr(int(v)); err != nil {
		return 0, err
	}
	return uint8(v), nil
}
