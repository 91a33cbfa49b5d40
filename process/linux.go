package process

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jyane/memscan/scanner"
)

// memFile is the /proc/<pid>/mem descriptor a Handle reads and writes
// through once attached. Kept as its own type so tests can substitute a
// closeable no-op without dragging in a real pid.
type memFile interface {
	ReadAt(b []byte, off int64) (int, error)
	WriteAt(b []byte, off int64) (int, error)
	Close() error
}

// Open attaches to pid via ptrace and opens its memory file, mirroring
// moxide::process::Process::open's OpenProcess(PROCESS_ALL_ACCESS, pid) call
// one step at a time: PtraceAttach takes the role of OpenProcess, and the
// /proc/<pid>/mem descriptor takes the role of the resulting HANDLE used by
// every later ReadProcessMemory/WriteProcessMemory call.
func Open(pid int) (*Handle, error) {
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("ptrace attach to pid %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("wait for pid %d to stop: %w", pid, err)
	}
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDWR, 0)
	if err != nil {
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("open /proc/%d/mem: %w", pid, err)
	}
	return &Handle{pid: pid, mem: f, attached: true}, nil
}

func ptraceDetach(pid int) error {
	return unix.PtraceDetach(pid)
}

// EnumerateRegions parses /proc/<pid>/maps, the Linux analogue of repeated
// VirtualQueryEx calls walking the address space one region at a time.
func (h *Handle) EnumerateRegions() ([]scanner.MemoryRegion, error) {
	return parseMaps(h.pid)
}

// Read reads up to n bytes at addr via pread on /proc/<pid>/mem, falling
// back to ptrace PEEKDATA word-at-a-time reads if the pread is refused (some
// kernels restrict /proc/<pid>/mem access to regions the tracer already
// faulted in). This mirrors ReadProcessMemory's role one-for-one.
func (h *Handle) Read(addr uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := h.mem.ReadAt(buf, int64(addr))
	if err == nil || read == n {
		return buf[:read], nil
	}
	if read > 0 {
		return buf[:read], nil
	}
	return h.readByPeek(addr, n)
}

func (h *Handle) readByPeek(addr uintptr, n int) ([]byte, error) {
	out := make([]byte, n)
	got, err := unix.PtracePeekData(h.pid, addr, out)
	if err != nil {
		return nil, fmt.Errorf("ptrace peek at 0x%x: %w", addr, err)
	}
	return out[:got], nil
}

// Write writes data at addr via pwrite on /proc/<pid>/mem, the Linux
// analogue of WriteProcessMemory.
func (h *Handle) Write(addr uintptr, data []byte) (int, error) {
	n, err := h.mem.WriteAt(data, int64(addr))
	if err != nil {
		if n2, perr := unix.PtracePokeData(h.pid, addr, data); perr == nil {
			return n2, nil
		}
		return n, fmt.Errorf("write 0x%x: %w", addr, err)
	}
	return n, nil
}

// Name reads the process's comm name, the Linux analogue of the
// EnumProcesses + GetModuleBaseName pair the original used to label a pid in
// its process list.
func (h *Handle) Name() (string, error) {
	return readComm(h.pid)
}
