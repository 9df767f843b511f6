package validation

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// DeviceIDRegex validates device ID format
	DeviceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateDeviceID validates the id a device reports in its announce.
func ValidateDeviceID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("device id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("device id is too long (max 128 characters)")
	}
	if !DeviceIDRegex.MatchString(id) {
		return fmt.Errorf("device id contains invalid characters (only letters, numbers, _, -, . allowed)")
	}
	return nil
}

// ValidateDeviceName validates a human-readable device name.
func ValidateDeviceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("device name is too long (max 100 characters)")
	}
	return nil
}

// ValidateIPAddress validates an IPv4 or IPv6 address literal.
func ValidateIPAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("ip address is required")
	}
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("invalid ip address: %s", addr)
	}
	return nil
}

// ValidatePort validates a port carried as a decimal string, the way phone
// clients report it.
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %s", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port out of range: %d", n)
	}
	return nil
}

// SanitizeString removes control characters and trims whitespace.
func SanitizeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
