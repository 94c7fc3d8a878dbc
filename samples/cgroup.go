// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package samples

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	psdocker "github.com/shirou/gopsutil/v3/docker"
)

const (
	defaultCPUBase    = "/sys/fs/cgroup/cpuacct/docker"
	defaultMemoryBase = "/sys/fs/cgroup/memory/docker"
)

var errListCgroups = errors.New("failed listing container cgroups")

// Source produces one round of samples keyed by an external name.
type Source interface {
	Name() string
	Collect(ctx context.Context) (map[string][]float64, error)
}

// CgroupSource samples every docker container cgroup. Each sample is the
// tuple [cpu percent of one core since the previous round, memory bytes].
// A container shows up from its second round on since the cpu share needs
// two readings.
type CgroupSource struct {
	cpuBase    string
	memoryBase string

	list     func() ([]string, error)
	cpuStat  func(context.Context, string, string) (*psdocker.CgroupCPUStat, error)
	memStat  func(context.Context, string, string) (*psdocker.CgroupMemStat, error)
	now      func() time.Time
	lock     sync.Mutex
	previous map[string]reading
}

type reading struct {
	at      time.Time
	cpuTime float64
}

// NewCgroupSource reads the cgroup v1 cpuacct and memory hierarchies rooted
// at cpuBase and memoryBase. Empty bases select the docker defaults.
func NewCgroupSource(cpuBase, memoryBase string) *CgroupSource {
	if cpuBase == "" {
		cpuBase = defaultCPUBase
	}
	if memoryBase == "" {
		memoryBase = defaultMemoryBase
	}
	s := &CgroupSource{
		cpuBase:    cpuBase,
		memoryBase: memoryBase,
		cpuStat:    psdocker.CgroupCPUWithContext,
		memStat:    psdocker.CgroupMemWithContext,
		now:        time.Now,
		previous:   make(map[string]reading),
	}
	s.list = s.listCgroups
	return s
}

func (s *CgroupSource) Name() string {
	return "cgroup"
}

func (s *CgroupSource) Collect(ctx context.Context) (map[string][]float64, error) {
	names, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListCgroups, err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.now()
	current := make(map[string]reading, len(names))
	samples := make(map[string][]float64, len(names))
	for _, name := range names {
		cpu, err := s.cpuStat(ctx, name, s.cpuBase)
		if err != nil {
			continue
		}
		mem, err := s.memStat(ctx, name, s.memoryBase)
		if err != nil {
			continue
		}

		r := reading{at: now, cpuTime: cpu.User + cpu.System}
		current[name] = r
		prev, ok := s.previous[name]
		if !ok {
			continue
		}
		elapsed := r.at.Sub(prev.at).Seconds()
		if elapsed <= 0 {
			continue
		}
		percent := (r.cpuTime - prev.cpuTime) / elapsed * 100
		if percent < 0 {
			percent = 0
		}
		samples[name] = []float64{percent, float64(mem.MemUsageInBytes)}
	}
	s.previous = current
	return samples, nil
}

func (s *CgroupSource) listCgroups() ([]string, error) {
	entries, err := os.ReadDir(s.cpuBase)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := Resolve(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
