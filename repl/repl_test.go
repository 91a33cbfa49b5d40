package repl

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jyane/memscan/scanner"
)

// fakeHandle is an in-memory attachedHandle, playing the same role
// scanner's own fakeHandle plays for the engine's tests.
type fakeHandle struct {
	regions []scanner.MemoryRegion
	mem     map[uintptr][]byte
	name    string
	closed  bool
}

func newFakeHandle(name string) *fakeHandle {
	return &fakeHandle{mem: make(map[uintptr][]byte), name: name}
}

func (f *fakeHandle) addRegion(base uintptr, data []byte, protect uint32) {
	f.regions = append(f.regions, scanner.MemoryRegion{Base: base, Size: len(data), Protect: protect})
	f.mem[base] = data
}

func (f *fakeHandle) EnumerateRegions() ([]scanner.MemoryRegion, error) { return f.regions, nil }

func (f *fakeHandle) Read(addr uintptr, n int) ([]byte, error) {
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

func (f *fakeHandle) Close() error          { f.closed = true; return nil }
func (f *fakeHandle) Name() (string, error) { return f.name, nil }

func newTestSession(h *fakeHandle) (*Session, *bytes.Buffer, *bytes.Buffer) {
	sess := newSession()
	sess.openFunc = func(pid int) (attachedHandle, error) { return h, nil }
	return sess, &bytes.Buffer{}, &bytes.Buffer{}
}

func TestAttachRunListWrite(t *testing.T) {
	h := newFakeHandle("widget")
	buf := make([]byte, 16)
	copy(buf[4:8], scanner.NewI32(42).EncodeNative())
	h.addRegion(0x1000, buf, scanner.PermWrite)

	sess, out, errOut := newTestSession(h)
	if done := sess.dispatch(out, errOut, "attach 123"); done {
		t.Fatalf("attach should not terminate the loop")
	}
	if got := out.String(); !strings.Contains(got, "Attached to process: widget") {
		t.Fatalf("attach output: %q", got)
	}
	out.Reset()

	sess.dispatch(out, errOut, "run =:42")
	if got := out.String(); !strings.Contains(got, "Scan complete. 1 results found") {
		t.Fatalf("run output: %q", got)
	}
	out.Reset()

	sess.dispatch(out, errOut, "list")
	if got := out.String(); !strings.Contains(got, "0000000000001004: 42") {
		t.Fatalf("list output: %q", got)
	}
	out.Reset()

	sess.dispatch(out, errOut, "write 7_i32")
	if got := out.String(); !strings.Contains(got, "Write successful") {
		t.Fatalf("write output: %q", got)
	}
	if got := errOut.String(); got != "" {
		t.Fatalf("unexpected error output: %q", got)
	}
	got, _ := h.Read(0x1000, 16)
	if scanner.DecodeNative(got[4:8], scanner.I32).Display() != "7" {
		t.Fatalf("value was not written: %v", got)
	}
}

func TestRunWithoutAttachIsNoAttachedProcessError(t *testing.T) {
	sess, out, errOut := newTestSession(newFakeHandle("x"))
	sess.dispatch(out, errOut, "run =:1")
	if !strings.Contains(errOut.String(), "NoAttachedProcess") {
		t.Fatalf("expected NoAttachedProcess error, got %q", errOut.String())
	}
	if out.String() != "" {
		t.Fatalf("expected no output on the success writer, got %q", out.String())
	}
}

func TestListWithoutScanIsNoPriorScanError(t *testing.T) {
	h := newFakeHandle("x")
	sess, out, errOut := newTestSession(h)
	sess.dispatch(out, errOut, "attach 1")
	out.Reset()
	sess.dispatch(out, errOut, "list")
	if !strings.Contains(errOut.String(), "NoPriorScan") {
		t.Fatalf("expected NoPriorScan error, got %q", errOut.String())
	}
}

func TestRunWithBadPatternIsParseError(t *testing.T) {
	h := newFakeHandle("x")
	sess, out, errOut := newTestSession(h)
	sess.dispatch(out, errOut, "attach 1")
	out.Reset()
	sess.dispatch(out, errOut, "run %:1")
	if !strings.Contains(errOut.String(), "ParseError") {
		t.Fatalf("expected ParseError, got %q", errOut.String())
	}
}

func TestWriteNonExactPredicateIsWriteRequiresExactError(t *testing.T) {
	h := newFakeHandle("x")
	buf := make([]byte, 16)
	copy(buf[4:8], scanner.NewI32(42).EncodeNative())
	h.addRegion(0x1000, buf, scanner.PermWrite)

	sess, out, errOut := newTestSession(h)
	sess.dispatch(out, errOut, "attach 1")
	out.Reset()
	sess.dispatch(out, errOut, "run =:42")
	out.Reset()
	sess.dispatch(out, errOut, "write >=:5")
	if !strings.Contains(errOut.String(), "WriteRequiresExact") {
		t.Fatalf("expected WriteRequiresExact error, got %q", errOut.String())
	}
}

func TestExitTerminatesLoop(t *testing.T) {
	sess, out, errOut := newTestSession(newFakeHandle("x"))
	if done := sess.dispatch(out, errOut, "exit"); !done {
		t.Fatalf("expected exit to terminate the loop")
	}
}

func TestUnknownCommandIsReported(t *testing.T) {
	sess, out, errOut := newTestSession(newFakeHandle("x"))
	sess.dispatch(out, errOut, "frobnicate")
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("expected unknown command error, got %q", errOut.String())
	}
}
