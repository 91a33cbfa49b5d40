package scanner

import (
	"encoding/binary"
	"unsafe"
)

// init resolves nativeEndian to the host's actual byte order. The scan engine
// must read and write memory using the same order the target CPU uses, so
// this can never be hardcoded to LittleEndian.
func init() {
	var x uint16 = 1
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		nativeEndian = binary.LittleEndian
	} else {
		nativeEndian = binary.BigEndian
	}
}
