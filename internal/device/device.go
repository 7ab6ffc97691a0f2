// Package device decides where each model category runs. A capability probe
// reports which accelerators exist and a declarative policy table maps every
// category to a placement.
package device

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Kind is an execution device class.
type Kind string

const (
	CUDA Kind = "cuda"
	MPS  Kind = "mps"
	CPU  Kind = "cpu"
)

// ParseKind parses a device name. The empty string parses as "" (no override).
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", CUDA, MPS, CPU:
		return k, nil
	default:
		return "", fmt.Errorf("unknown device %q (want cuda, mps or cpu)", s)
	}
}

// Probe reports accelerator capability of the host.
type Probe interface {
	CUDA() bool
	MPS() bool
}

// HostProbe inspects the running host.
type HostProbe struct{}

// CUDA reports an NVIDIA device. CUDA_VISIBLE_DEVICES set to "" or "-1"
// hides all devices.
func (HostProbe) CUDA() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	for _, p := range []string{"/dev/nvidiactl", "/proc/driver/nvidia/version"} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// MPS reports Apple Silicon.
func (HostProbe) MPS() bool {
	return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
}

// StaticProbe is a fixed capability set.
type StaticProbe struct {
	HasCUDA bool
	HasMPS  bool
}

func (p StaticProbe) CUDA() bool { return p.HasCUDA }
func (p StaticProbe) MPS() bool  { return p.HasMPS }
