package process

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jyane/memscan/scanner"
)

// parseMaps reads /proc/<pid>/maps line by line, the same bufio.Scanner-over-
// a-line-oriented-kernel-file idiom the debug console uses to read commands
// off stdin. Each line looks like:
//
//	7f2a1c000000-7f2a1c021000 rw-p 00000000 00:00 0  [heap]
//
// and is turned into one scanner.MemoryRegion with Protect translated from
// the "rwxp" string into the package's bitmask.
func parseMaps(pid int) ([]scanner.MemoryRegion, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("open /proc/%d/maps: %w", pid, err)
	}
	defer f.Close()

	var regions []scanner.MemoryRegion
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		region, ok := parseMapsLine(scan.Text())
		if ok {
			regions = append(regions, region)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("scan /proc/%d/maps: %w", pid, err)
	}
	return regions, nil
}

func parseMapsLine(line string) (scanner.MemoryRegion, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return scanner.MemoryRegion{}, false
	}
	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return scanner.MemoryRegion{}, false
	}
	start, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return scanner.MemoryRegion{}, false
	}
	end, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil || end <= start {
		return scanner.MemoryRegion{}, false
	}
	return scanner.MemoryRegion{
		Base:    uintptr(start),
		Size:    int(end - start),
		Protect: protectFromFlags(fields[1]),
	}, true
}

// protectFromFlags translates a "rwxp"/"rwxs"-style flag string into the
// package's protection bitmask.
func protectFromFlags(flags string) uint32 {
	var p uint32
	for _, c := range flags {
		switch c {
		case 'r':
			p |= scanner.PermRead
		case 'w':
			p |= scanner.PermWrite
		case 'x':
			p |= scanner.PermExec
		case 's':
			p |= scanner.PermShared
		case 'p':
			p |= scanner.PermPrivate
		}
	}
	return p
}

// readComm reads /proc/<pid>/comm, the short process name the kernel keeps
// independently of argv[0].
func readComm(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", fmt.Errorf("read /proc/%d/comm: %w", pid, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// enumPIDs lists every numeric entry under /proc, the Linux analogue of
// EnumProcesses's snapshot of every running process id.
func enumPIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}
	var pids []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}
