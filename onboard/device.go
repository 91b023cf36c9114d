package onboard

import (
	"fmt"
	"io"

	"github.com/CodedInternet/emmdiag/onboard/broadcast"
	"github.com/CodedInternet/emmdiag/onboard/canbus"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/CodedInternet/emmdiag/onboard/motortest"
	"github.com/rs/zerolog/log"
)

// Device is the arm as seen by the diagnostics: one bus, one driver, one tester.
type Device struct {
	Config    DiagConfig
	Simulated bool
	Driver    *hardware.Driver
	Tester    *motortest.Tester
	Output    *broadcast.Broadcaster

	console *broadcast.SerialSink
}

// NewDevice opens the bus named in config, or a simulated arm when simulated is set,
// and narrates to stdout plus the serial console when one is configured.
func NewDevice(config DiagConfig, simulated bool, stdout io.Writer) (d *Device, err error) {
	d = &Device{
		Config:    config,
		Simulated: simulated,
		Output:    broadcast.New(broadcast.NewWriterSink(stdout)),
	}

	if config.Console.Device != "" {
		d.console, err = broadcast.OpenSerial(config.Console.Device, config.Console.Baud)
		if err != nil {
			return nil, err
		}
		d.Output.Add(d.console)
	}

	bus, err := d.getBus()
	if err != nil {
		d.closeConsole()
		return nil, fmt.Errorf("unable to open bus %s: %w", config.Bus, err)
	}

	d.Driver = hardware.NewDriver(bus)
	d.Tester = motortest.New(d.Driver, d.Output)
	d.Tester.Move = motortest.MoveParams(config.Move)

	return
}

func (d *Device) getBus() (bus canbus.CANBusInterface, err error) {
	if d.Simulated {
		return hardware.NewSimulatedBus(d.Config.Addresses.Each()...), nil
	}

	cbus, err := canbus.NewCANBus(d.Config.Bus)
	if err != nil {
		return nil, err
	}
	return cbus, nil
}

func (d *Device) Close() error {
	d.closeConsole()
	return d.Driver.Close()
}

func (d *Device) closeConsole() {
	if d.console == nil {
		return
	}
	if err := d.console.Close(); err != nil {
		log.Warn().Err(err).Msg("closing serial console")
	}
}
