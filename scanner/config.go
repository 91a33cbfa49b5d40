package scanner

// Protection bits, as parsed out of the "rwxp"-style permission string in
// /proc/<pid>/maps by the process package. These stand in for the
// PAGE_READWRITE/PAGE_WRITECOPY/... flags the teacher domain's original
// Windows-hosted collaborator reported from VirtualQueryEx.
const (
	PermRead uint32 = 1 << iota
	PermWrite
	PermExec
	PermShared
	PermPrivate
)

// DefaultPermissionMask selects writable pages: scanning read-only text/rodata
// is both useless for patching and wastes time walking pages nothing will
// ever match against a later write.
const DefaultPermissionMask uint32 = PermWrite

// DefaultAlignment is the byte stride the initial scan's sliding window
// advances by when the caller doesn't override it.
const DefaultAlignment = 4

// ScanConfig holds the permission mask and alignment a scan runs with.
type ScanConfig struct {
	PermissionMask uint32
	Alignment      int
}

// NewScanConfig builds a ScanConfig, defaulting Alignment to
// DefaultAlignment when alignment <= 0.
func NewScanConfig(permissionMask uint32, alignment int) ScanConfig {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	return ScanConfig{PermissionMask: permissionMask, Alignment: alignment}
}

// DefaultScanConfig returns the conventional writable-pages-at-4-byte-stride
// configuration.
func DefaultScanConfig() ScanConfig {
	return NewScanConfig(DefaultPermissionMask, DefaultAlignment)
}

// MatchRegion reports whether a region with the given protection bitmask is
// admitted into a scan under this config.
func (c ScanConfig) MatchRegion(protect uint32) bool {
	return protect&c.PermissionMask != 0
}
