// Package sysinfo captures a one-shot snapshot of the host machine. The
// snapshot is logged at the start of a run and served by the web adapter; a
// probe that fails leaves its field at zero instead of failing the run.
package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// Info is a host snapshot taken at a single point in time.
type Info struct {
	Hostname        string `json:"hostname,omitempty"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	Arch            string `json:"arch"`
	CPUCount        int    `json:"cpu_count"`
	TotalMemory     uint64 `json:"total_memory"`
	AvailableMemory uint64 `json:"available_memory"`
	FreeDisk        uint64 `json:"free_disk"`
}

// Snapshot probes the host. The disk figure covers the volume holding path;
// an empty path means the working directory.
func Snapshot(log *logrus.Logger, path string) Info {
	if path == "" {
		path = "."
	}

	info := Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
	} else {
		log.Debugf("Host probe failed: %v", err)
	}

	if n, err := cpu.Counts(true); err == nil {
		info.CPUCount = n
	} else {
		log.Debugf("CPU probe failed: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
		info.AvailableMemory = vm.Available
	} else {
		log.Debugf("Memory probe failed: %v", err)
	}

	if du, err := disk.Usage(path); err == nil {
		info.FreeDisk = du.Free
	} else {
		log.Debugf("Disk probe failed for %s: %v", path, err)
	}

	return info
}

// Fields renders the snapshot for structured logging.
func (i Info) Fields() logrus.Fields {
	return logrus.Fields{
		"os":               i.OS,
		"arch":             i.Arch,
		"cpu_count":        i.CPUCount,
		"total_memory":     i.TotalMemory,
		"available_memory": i.AvailableMemory,
		"free_disk":        i.FreeDisk,
	}
}
