package proto

import (
	"fmt"
	"strings"
	"time"
)

// AutoDetect is the port name that enumerates devices instead of opening a
// named one.
const AutoDetect = "AUTO"

type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Match identifies a device during auto-detection. Empty fields match
// anything; at least one field must be set.
type Match struct {
	VID          uint16
	PID          uint16
	SerialNumber string
	NameContains string
}

func (m Match) String() string {
	var parts []string
	if m.VID != 0 || m.PID != 0 {
		parts = append(parts, fmt.Sprintf("%04x:%04x", m.VID, m.PID))
	}
	if m.SerialNumber != "" {
		parts = append(parts, "sn="+m.SerialNumber)
	}
	if m.NameContains != "" {
		parts = append(parts, "name~"+m.NameContains)
	}
	return strings.Join(parts, ",")
}

func (m Match) empty() bool {
	return m.VID == 0 && m.PID == 0 && m.SerialNumber == "" && m.NameContains == ""
}

// Matches reports whether the described port satisfies m.
func (m Match) Matches(name string, vid, pid uint16, serialNumber string) bool {
	if m.empty() {
		return false
	}
	if m.VID != 0 && m.VID != vid {
		return false
	}
	if m.PID != 0 && m.PID != pid {
		return false
	}
	if m.SerialNumber != "" && m.SerialNumber != serialNumber {
		return false
	}
	if m.NameContains != "" && !strings.Contains(name, m.NameContains) {
		return false
	}
	return true
}
