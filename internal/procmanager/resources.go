package procmanager

import (
	"github.com/shirou/gopsutil/v4/process"
)

// ResourceUsage is one point-in-time sample of a process's resource usage
type ResourceUsage struct {
	CPUPercent float64
	MemoryMB   float64
}

// ResourceSampler reads resource usage for a pid. Implementations may fail
// transiently (permission denied, process gone); callers swallow those
// errors and keep the previous sample.
type ResourceSampler interface {
	Sample(pid int) (ResourceUsage, error)
}

// psSampler implements ResourceSampler via gopsutil
type psSampler struct{}

// NewResourceSampler creates the OS-backed resource sampler
func NewResourceSampler() ResourceSampler {
	return psSampler{}
}

func (psSampler) Sample(pid int) (ResourceUsage, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ResourceUsage{}, err
	}

	cpu, err := p.CPUPercent()
	if err != nil {
		return ResourceUsage{}, err
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return ResourceUsage{}, err
	}

	return ResourceUsage{
		CPUPercent: cpu,
		MemoryMB:   float64(mem.RSS) / (1024 * 1024),
	}, nil
}
