// Package process is the OS collaborator the scan engine depends on: opening
// a target process, walking its memory map, and reading/writing its memory.
// It is a thin, Go-idiomatic port of the host OS's process API, grounded on
// the original moxide::process::Process (Windows, via winapi's OpenProcess /
// ReadProcessMemory / WriteProcessMemory / VirtualQueryEx / EnumProcesses)
// translated one call at a time to its Linux analogue: ptrace(2) attach,
// /proc/<pid>/mem pread/pwrite, and /proc/<pid>/maps region enumeration.
package process

import (
	"fmt"

	"github.com/jyane/memscan/scanner"
)

// Handle is the exclusive owner of an attached target process. A new Handle
// from Open must be Close'd exactly once to release the ptrace attachment.
type Handle struct {
	pid      int
	mem      memFile
	attached bool
}

// Compile-time assertion that Handle satisfies the engine's contract.
var _ scanner.ProcessHandle = (*Handle)(nil)

// PID returns the process identifier this handle is attached to.
func (h *Handle) PID() int { return h.pid }

// Close detaches from the process and releases the underlying file
// descriptor. It is safe, but not meaningful, to call more than once.
func (h *Handle) Close() error {
	if !h.attached {
		return nil
	}
	h.attached = false
	closeErr := h.mem.Close()
	detachErr := ptraceDetach(h.pid)
	if detachErr != nil {
		return fmt.Errorf("detach from pid %d: %w", h.pid, detachErr)
	}
	return closeErr
}

// EnumPIDs lists every process ID currently visible under /proc, for ps-style
// listings. It is cosmetic and not on the scan path.
func EnumPIDs() ([]int, error) {
	return enumPIDs()
}

// Name reads pid's comm name without attaching to it, for ps-style listings
// where attaching to every process just to print its name would be both slow
// and needlessly invasive.
func Name(pid int) (string, error) {
	return readComm(pid)
}
