package broadcast

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const DEFAULT_BAUD = 115200

// SerialSink mirrors the output onto a serial console, CRLF terminated.
type SerialSink struct {
	*WriterSink
	port serial.Port
}

func OpenSerial(device string, baud int) (*SerialSink, error) {
	if baud == 0 {
		baud = DEFAULT_BAUD
	}

	mode := &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial console %s: %w", device, err)
	}

	log.Info().Str("device", device).Int("baud", baud).Msg("serial console open")

	sink := &SerialSink{
		WriterSink: NewWriterSink(port),
		port:       port,
	}
	sink.EOL = "\r\n"

	return sink, nil
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}
