package licensing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
)

// MachineFingerprint derives a stable identifier for the current machine and
// returns it as a hex SHA-256 digest. The raw platform identifier never leaves
// this function.
//
// Acquisition order: OS machine id, then primary MAC address, then hostname.
// Binding is a deterrent rather than a security boundary, so the chain prefers
// producing a weaker identifier over failing outright; an error is returned
// only when even the hostname is unavailable.
func MachineFingerprint() (string, error) {
	if id := platformMachineID(); id != "" {
		return hashFingerprint("machine-id:" + id), nil
	}

	if mac := primaryMACAddress(); mac != "" {
		slog.Warn("no platform machine id available, falling back to MAC address")
		return hashFingerprint("mac:" + mac), nil
	}

	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return "", fmt.Errorf("unable to derive machine fingerprint: %v", err)
	}

	slog.Warn("no machine id or MAC address available, falling back to hostname", "hostname", hostname)
	return hashFingerprint("hostname:" + strings.ToLower(strings.TrimSpace(hostname))), nil
}

func hashFingerprint(raw string) string {
	digest := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(digest[:])
}

// platformMachineID reads the OS-assigned machine identifier where one exists.
// Returns "" when the platform offers none.
func platformMachineID() string {
	switch runtime.GOOS {
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
			if data, err := os.ReadFile(path); err == nil {
				if id := strings.TrimSpace(string(data)); id != "" {
					return id
				}
			}
		}
	case "windows":
		// The processor identifier is stable per installation and available
		// without registry access.
		if id := os.Getenv("PROCESSOR_IDENTIFIER"); id != "" {
			if name := os.Getenv("COMPUTERNAME"); name != "" {
				return id + "|" + name
			}
			return id
		}
	}
	return ""
}

// primaryMACAddress returns the hardware address of the first up,
// non-loopback interface, or any interface with a MAC as a fallback.
func primaryMACAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		slog.Warn("failed to enumerate network interfaces", "error", err)
		return ""
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}

	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}

	return ""
}
