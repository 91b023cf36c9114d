package onboard

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/CodedInternet/emmdiag/onboard/broadcast"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/CodedInternet/emmdiag/onboard/motortest"
	"github.com/Masterminds/semver"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

const (
	CONFIG_VERSION    = "~1.0"
	MAX_MOVE_DURATION = 5 * time.Second
)

type DiagConfig struct {
	Version   string        `yaml:"version"`
	Bus       string        `yaml:"bus"`
	Addresses AddressRange  `yaml:"addresses"`
	Move      MoveConfig    `yaml:"move"`
	Console   ConsoleConfig `yaml:"console"`
	Listen    string        `yaml:"listen"`
}

type AddressRange struct {
	First uint8 `yaml:"first"`
	Last  uint8 `yaml:"last"`
}

// Each yields every address in the range.
func (r AddressRange) Each() (addrs []uint8) {
	for a := int(r.First); a <= int(r.Last); a++ {
		addrs = append(addrs, uint8(a))
	}
	return
}

type ConsoleConfig struct {
	Device string `yaml:"device,omitempty"` // serial console mirroring the output, e.g. /dev/ttyUSB0
	Baud   int    `yaml:"baud,omitempty"`
}

type MoveConfig motortest.MoveParams

type YAMLMove struct {
	RPM       uint16        `yaml:"rpm"`
	Accel     uint8         `yaml:"accel"`
	Duration  time.Duration `yaml:"duration"`
	Direction string        `yaml:"direction"`
}

func (m MoveConfig) MarshalYAML() (interface{}, error) {
	return &YAMLMove{m.RPM, m.Accel, m.Duration, m.Direction.String()}, nil
}

func (m *MoveConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	ym := YAMLMove{m.RPM, m.Accel, m.Duration, m.Direction.String()}
	if err := unmarshal(&ym); err != nil {
		return err
	}

	switch ym.Direction {
	case "cw", "":
		m.Direction = hardware.DIR_CW
	case "ccw":
		m.Direction = hardware.DIR_CCW
	default:
		return fmt.Errorf("move direction must be cw or ccw, got %q", ym.Direction)
	}
	m.RPM = ym.RPM
	m.Accel = ym.Accel
	m.Duration = ym.Duration
	return nil
}

func DefaultConfig() DiagConfig {
	return DiagConfig{
		Version:   "1.0.0",
		Bus:       "can0",
		Addresses: AddressRange{motortest.MOTOR_ADDR_MIN, motortest.MOTOR_ADDR_MAX},
		Move:      MoveConfig(motortest.DefaultMove),
		Console:   ConsoleConfig{Baud: broadcast.DEFAULT_BAUD},
		Listen:    "127.0.0.1:8080",
	}
}

// LoadConfig reads filename over the defaults. A missing file yields the defaults.
func LoadConfig(filename string) (config DiagConfig, err error) {
	config = DefaultConfig()

	raw, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		log.Debug().Str("file", filename).Msg("no config file, using defaults")
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("unable to read config: %w", err)
	}

	if err = ParseConfig(raw, &config); err != nil {
		return config, fmt.Errorf("%s: %w", filename, err)
	}
	return
}

func ParseConfig(raw []byte, config *DiagConfig) error {
	if err := yaml.Unmarshal(raw, config); err != nil {
		return fmt.Errorf("unable to unmarshal yaml: %w", err)
	}
	return config.Validate()
}

func (c DiagConfig) Validate() error {
	semVer, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("config version %q: %w", c.Version, err)
	}
	semVerConstraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return err
	}
	if !semVerConstraint.Check(semVer) {
		return fmt.Errorf("unable to use config version %s - require %s", c.Version, CONFIG_VERSION)
	}

	if c.Bus == "" {
		return fmt.Errorf("bus must name a can interface")
	}

	if err := motortest.ValidAddr(int(c.Addresses.First)); err != nil {
		return fmt.Errorf("addresses.first: %w", err)
	}
	if err := motortest.ValidAddr(int(c.Addresses.Last)); err != nil {
		return fmt.Errorf("addresses.last: %w", err)
	}
	if c.Addresses.Last < c.Addresses.First {
		return fmt.Errorf("addresses: last %d is before first %d", c.Addresses.Last, c.Addresses.First)
	}

	if c.Move.RPM == 0 || c.Move.RPM > hardware.VEL_MAX {
		return fmt.Errorf("move.rpm must be 1-%d", hardware.VEL_MAX)
	}
	if c.Move.Duration <= 0 || c.Move.Duration > MAX_MOVE_DURATION {
		return fmt.Errorf("move.duration must be positive and at most %v", MAX_MOVE_DURATION)
	}

	return nil
}
