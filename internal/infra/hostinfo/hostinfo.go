// Package hostinfo collects the host facts stamped into every report:
// hostname, core and thread counts, and physical RAM. Linux facts come from
// procfs with portable fallbacks elsewhere.
package hostinfo

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Info describes the benchmark host.
type Info struct {
	Hostname   string
	NumCores   int
	NumThreads int
	RAMBytes   uint64
}

// Collect gathers host facts. Failures degrade to fallbacks rather than
// erroring: a report with a zero RAM figure is still useful.
func Collect() Info {
	hostname, _ := os.Hostname()
	return Info{
		Hostname:   hostname,
		NumCores:   physicalCores(),
		NumThreads: runtime.NumCPU(),
		RAMBytes:   totalRAM(),
	}
}

// physicalCores counts distinct (physical id, core id) pairs in
// /proc/cpuinfo. When that fails, the logical CPU count stands in.
func physicalCores() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return runtime.NumCPU()
	}
	defer f.Close()

	cores := make(map[string]struct{})
	var physicalID, coreID string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "physical id"):
			physicalID = fieldValue(line)
		case strings.HasPrefix(line, "core id"):
			coreID = fieldValue(line)
		case line == "":
			if physicalID != "" || coreID != "" {
				cores[physicalID+"/"+coreID] = struct{}{}
			}
			physicalID, coreID = "", ""
		}
	}
	if physicalID != "" || coreID != "" {
		cores[physicalID+"/"+coreID] = struct{}{}
	}

	if len(cores) == 0 {
		return runtime.NumCPU()
	}
	return len(cores)
}

// totalRAM reads MemTotal from /proc/meminfo, in bytes. Zero when unknown.
func totalRAM() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}

func fieldValue(line string) string {
	_, value, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(value)
}
