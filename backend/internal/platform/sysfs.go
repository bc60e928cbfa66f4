// Package platform implements the hardware and process boundaries on a Linux host.
package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrCRC        = errors.New("w1 crc check failed")
	ErrNoReading  = errors.New("w1 reading not found")
	ErrEmptyValue = errors.New("empty value")
)

// W1Thermometer reads a DS18B20 through the w1_therm sysfs file (w1_slave).
type W1Thermometer struct {
	path string
}

func NewW1Thermometer(path string) *W1Thermometer {
	return &W1Thermometer{path: path}
}

// ReadTemperature returns the conversion in °C.
func (w *W1Thermometer) ReadTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", w.path, err)
	}

	return ParseW1Slave(data)
}

// ParseW1Slave parses the two line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1Slave(data []byte) (float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))

	if !sc.Scan() {
		return 0, ErrNoReading
	}

	if !strings.HasSuffix(strings.TrimSpace(sc.Text()), "YES") {
		return 0, ErrCRC
	}

	if !sc.Scan() {
		return 0, ErrNoReading
	}

	_, raw, ok := strings.Cut(sc.Text(), "t=")
	if !ok {
		return 0, ErrNoReading
	}

	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid w1 temperature %q: %w", raw, err)
	}

	return float64(milli) / 1000, nil
}

// IIOChannel reads an integer from an industrial I/O sysfs file such as in_voltage0_raw.
type IIOChannel struct {
	path string
}

func NewIIOChannel(path string) *IIOChannel {
	return &IIOChannel{path: path}
}

func (c *IIOChannel) read(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, ErrEmptyValue
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value in %s: %w", c.path, err)
	}

	return v, nil
}

// ReadRaw reads the channel as a battery ADC.
func (c *IIOChannel) ReadRaw(ctx context.Context) (int, error) { return c.read(ctx) }

// ReadHall reads the channel as a hall sensor.
func (c *IIOChannel) ReadHall(ctx context.Context) (int, error) { return c.read(ctx) }
