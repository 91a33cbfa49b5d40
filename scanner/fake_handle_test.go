package scanner

import "fmt"

// fakeHandle is an in-memory ProcessHandle used by the scanner package's own
// tests, playing the role the teacher's newTestCPU fixture-builder plays for
// nes/cpu_test.go: a small, fully controlled stand-in for the real target.
type fakeHandle struct {
	regions []MemoryRegion
	mem     map[uintptr][]byte // region base -> bytes
	failing map[uintptr]bool   // region base -> force Read to fail
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{mem: make(map[uintptr][]byte), failing: make(map[uintptr]bool)}
}

func (f *fakeHandle) addRegion(base uintptr, data []byte, protect uint32) {
	f.regions = append(f.regions, MemoryRegion{Base: base, Size: len(data), Protect: protect})
	f.mem[base] = data
}

func (f *fakeHandle) EnumerateRegions() ([]MemoryRegion, error) {
	return f.regions, nil
}

func (f *fakeHandle) Read(addr uintptr, n int) ([]byte, error) {
	if f.failing[addr] {
		return nil, fmt.Errorf("simulated read failure at 0x%x", addr)
	}
	data, ok := f.mem[addr]
	if !ok {
		return nil, fmt.Errorf("no region based at 0x%x", addr)
	}
	if n > len(data) {
		n = len(data)
	}
	return data[:n], nil
}

func (f *fakeHandle) Write(addr uintptr, data []byte) (int, error) {
	for base, region := range f.mem {
		if addr >= base && int(addr-base)+len(data) <= len(region) {
			copy(region[addr-base:], data)
			return len(data), nil
		}
	}
	return 0, fmt.Errorf("no region covers 0x%x", addr)
}
