// Package transportserial is the host-side direct USB-serial
// transport: it opens a tarm/serial port and exposes the line-
// oriented streamer.Conn interface by scanning for newline-delimited
// SSG frames, the alternate transport to host/transportws.
package transportserial

import (
	"bufio"
	"fmt"

	"github.com/tarm/serial"
)

// DefaultBaud is the rate used by the reference controller firmware.
// Unlike Klipper's 250000, the SSG controller runs over plain USB CDC
// at a conventional rate.
const DefaultBaud = 115200

// Conn is an open serial port, satisfying streamer.Conn.
type Conn struct {
	port    *serial.Port
	scanner *bufio.Scanner
}

// Open opens device at baud (0 selects DefaultBaud) and wraps it for
// line-oriented SSG I/O.
func Open(device string, baud int) (*Conn, error) {
	if baud == 0 {
		baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("transportserial: open %s: %w", device, err)
	}

	return &Conn{port: port, scanner: bufio.NewScanner(port)}, nil
}

// ReadLine blocks for the next newline-delimited SSG line.
func (c *Conn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("transportserial: read: end of stream")
	}
	return c.scanner.Text(), nil
}

// WriteLine writes line followed by a newline.
func (c *Conn) WriteLine(line string) error {
	_, err := c.port.Write([]byte(line + "\n"))
	if err != nil {
		return fmt.Errorf("transportserial: write: %w", err)
	}
	return nil
}

// Close closes the serial port.
func (c *Conn) Close() error {
	return c.port.Close()
}
