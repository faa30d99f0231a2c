package ibus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoAddress is returned when no IBus bus address can be found.
var ErrNoAddress = errors.New("ibus: daemon address not found")

var machineIDFiles = []string{"/var/lib/dbus/machine-id", "/etc/machine-id"}

// ResolveAddress finds the daemon's D-Bus address. IBUS_ADDRESS wins;
// otherwise the address file the daemon writes for the current display is
// read.
func ResolveAddress() (string, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}
	machineID, err := readMachineID()
	if err != nil {
		return "", err
	}
	path, err := BusFilePath(configHome(), machineID, os.Getenv("DISPLAY"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAddress, err)
	}
	return parseAddressFile(data)
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func readMachineID() (string, error) {
	for _, path := range machineIDFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no machine id", ErrNoAddress)
}

// BusFilePath returns the address file for an X display such as ":0" or
// "host:1.0". The daemon names the file after the machine id, the display
// host ("unix" when local) and the display number.
func BusFilePath(configDir, machineID, display string) (string, error) {
	host, num, err := parseDisplay(display)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "unix"
	}
	name := fmt.Sprintf("%s-%s-%s", machineID, host, num)
	return filepath.Join(configDir, "ibus", "bus", name), nil
}

func parseDisplay(display string) (host, num string, err error) {
	i := strings.LastIndexByte(display, ':')
	if i < 0 {
		return "", "", fmt.Errorf("%w: bad DISPLAY %q", ErrNoAddress, display)
	}
	host = display[:i]
	num = display[i+1:]
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		num = num[:dot]
	}
	if num == "" {
		return "", "", fmt.Errorf("%w: bad DISPLAY %q", ErrNoAddress, display)
	}
	return host, num, nil
}

// parseAddressFile extracts IBUS_ADDRESS from the daemon's shell-style
// address file. Comment lines start with '#'.
func parseAddressFile(data []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "IBUS_ADDRESS="); ok && v != "" {
			return v, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", ErrNoAddress
}
