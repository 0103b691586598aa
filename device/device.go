// Package device interrogates and binds accelerator devices.
package device

import "runtime"

import "github.com/klauspost/cpuid/v2"
import "github.com/pkg/errors"

import "gorgonia.org/cu"

// Count returns the number of accelerator devices on the host.
func Count() int {
	n, err := cu.NumDevices()
	if err != nil {
		return 0
	}
	return n
}

// CheckAvailable fails when no accelerator device is present. It must run
// before any worker is spawned.
func CheckAvailable() error {
	if Count() == 0 {
		return errors.New("no accelerator device available, check your machine configuration")
	}
	return nil
}

// Assert fails when the requested device index is not present on the host.
func Assert(idx int) error {
	if n := Count(); idx < 0 || idx >= n {
		return errors.Errorf("device %d not present (host has %d)", idx, n)
	}
	return nil
}

// Bind makes device idx current for the calling rank and returns a release
// function. The context is locked so the rank stays on one OS thread while
// bound.
func Bind(idx int) (release func(), err error) {
	dev, err := cu.GetDevice(idx)
	if err != nil {
		return nil, errors.Wrapf(err, "device %d", idx)
	}
	ctx, err := dev.MakeContext(cu.SchedAuto)
	if err != nil {
		return nil, errors.Wrapf(err, "device %d context", idx)
	}
	if err := ctx.Lock(); err != nil {
		ctx.Destroy()
		return nil, errors.Wrapf(err, "device %d context lock", idx)
	}
	return func() {
		ctx.Destroy()
	}, nil
}

// Describe returns a short description of device idx for startup logging.
func Describe(idx int) string {
	name, err := cu.Device(idx).Name()
	if err != nil {
		return "unknown device"
	}
	return name
}

// Cores returns the logical CPU core count used to auto-size worker pools.
func Cores() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
