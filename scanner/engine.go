package scanner

import (
	"runtime"
	"sort"
	"sync"

	"github.com/golang/glog"
)

// Engine orchestrates a scan against a ProcessHandle: it walks regions,
// filters by permission, reads each region once, slides a window across it
// evaluating the predicate, and stores hits grouped by source region so that
// a later refinement pass can bulk-read each region instead of each hit.
type Engine struct {
	handle ProcessHandle
}

// NewEngine binds an Engine to the process it will scan.
func NewEngine(handle ProcessHandle) *Engine {
	return &Engine{handle: handle}
}

// Run performs the initial full-memory sweep: every admitted region is read
// once and every aligned offset in it is checked against predicate, using
// DefaultFor(predicate.TypeTag()) as the placeholder "previous" reading.
// Stateful predicates thus trivially reduce on this pass to true-on-whatever-
// the-zero-placeholder-satisfies (Unknown matches everything, Unchanged
// matches only exact zeroes); this is documented behaviour, not a bug -
// callers should seed a first scan with Unknown or a stateless predicate.
func (e *Engine) Run(cfg ScanConfig, predicate Predicate) (*ResultSet, error) {
	regions, err := e.admittedRegions(cfg)
	if err != nil {
		return nil, err
	}
	tag := predicate.TypeTag()
	width := tag.Width()
	result := NewResultSet()
	for _, region := range regions {
		group, ok := e.scanRegion(region, cfg.Alignment, width, tag, predicate)
		if ok {
			result.addGroup(group)
		}
	}
	return result, nil
}

// RunConcurrent is Run's parallel variant: independent regions are scanned on
// a bounded worker pool, then the resulting groups are sorted by base address
// so the caller sees the same deterministic ordering Run would have produced.
func (e *Engine) RunConcurrent(cfg ScanConfig, predicate Predicate) (*ResultSet, error) {
	regions, err := e.admittedRegions(cfg)
	if err != nil {
		return nil, err
	}
	tag := predicate.TypeTag()
	width := tag.Width()

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(regions) && len(regions) > 0 {
		workers = len(regions)
	}

	jobs := make(chan MemoryRegion)
	groupsCh := make(chan HitGroup, len(regions))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for region := range jobs {
				if group, ok := e.scanRegion(region, cfg.Alignment, width, tag, predicate); ok {
					groupsCh <- group
				}
			}
		}()
	}
	go func() {
		for _, region := range regions {
			jobs <- region
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(groupsCh)
	}()

	groups := make([]HitGroup, 0, len(regions))
	for g := range groupsCh {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].RegionBase < groups[j].RegionBase })

	result := NewResultSet()
	result.setGroups(groups)
	return result, nil
}

// admittedRegions enumerates the target's memory map and filters it down to
// the regions cfg's permission mask admits.
func (e *Engine) admittedRegions(cfg ScanConfig) ([]MemoryRegion, error) {
	regions, err := e.handle.EnumerateRegions()
	if err != nil {
		return nil, err
	}
	admitted := regions[:0:0]
	for _, r := range regions {
		if cfg.MatchRegion(r.Protect) {
			admitted = append(admitted, r)
		}
	}
	glog.V(1).Infof("scanner: %d of %d regions admitted at permission mask 0x%x", len(admitted), len(regions), cfg.PermissionMask)
	return admitted, nil
}

// scanRegion reads one region and slides the width-byte, alignment-stepped
// window across it, returning the surviving hits as a HitGroup. A read
// failure is not fatal to the scan: the region is skipped and logged at
// V(1), since the OS memory map can change between enumeration and read.
func (e *Engine) scanRegion(region MemoryRegion, alignment, width int, tag Tag, predicate Predicate) (HitGroup, bool) {
	buf, err := e.handle.Read(region.Base, region.Size)
	if err != nil {
		glog.V(1).Infof("scanner: skipping region at 0x%x (%d bytes): %v", region.Base, region.Size, err)
		return HitGroup{}, false
	}
	previous := DefaultFor(tag)
	var hits []Hit
	for offset := 0; offset+width <= len(buf); offset += alignment {
		cur := DecodeNative(buf[offset:offset+width], tag)
		matched, err := predicate.Matches(cur, previous)
		if err != nil {
			glog.V(1).Infof("scanner: predicate error at 0x%x: %v", region.Base+uintptr(offset), err)
			continue
		}
		if matched {
			hits = append(hits, Hit{Address: region.Base + uintptr(offset), LastValue: cur})
		}
	}
	if len(hits) == 0 {
		return HitGroup{}, false
	}
	return HitGroup{RegionBase: region.Base, RegionLength: region.Size, Hits: hits}, true
}

// Refine filters result in place against a fresh reading of each surviving
// group's region. A hit whose new reading fails predicate.Matches is dropped;
// one whose region fails to read entirely is dropped along with the whole
// group (equivalent to "no hits remain there"), logged at V(1) rather than
// treated as fatal, since regions can be unmapped between scans.
func (e *Engine) Refine(predicate Predicate, result *ResultSet) error {
	tag := predicate.TypeTag()
	width := tag.Width()
	kept := result.groups[:0]
	for _, group := range result.groups {
		buf, err := e.handle.Read(group.RegionBase, group.RegionLength)
		if err != nil {
			glog.V(1).Infof("scanner: dropping group at 0x%x (%d bytes): %v", group.RegionBase, group.RegionLength, err)
			continue
		}
		survivors := group.Hits[:0]
		for _, hit := range group.Hits {
			offset := int(hit.Address - group.RegionBase)
			if offset < 0 || offset+width > len(buf) {
				continue
			}
			cur := DecodeNative(buf[offset:offset+width], tag)
			matched, err := predicate.Matches(cur, hit.LastValue)
			if err != nil {
				// Tags are bound from the predicate on both sides of
				// Matches, so this should not occur; surface it rather
				// than silently dropping the hit.
				return err
			}
			if matched {
				hit.LastValue = cur
				survivors = append(survivors, hit)
			}
		}
		if len(survivors) > 0 {
			group.Hits = survivors
			kept = append(kept, group)
		}
	}
	result.groups = kept
	return nil
}
