// Package hds builds Adobe HTTP Dynamic Streaming (F4F) fragments and
// bootstrap boxes: the tag-framed, DTS-interleaved container format HDS
// wraps around raw AVC/AAC frames, distinct from fMP4/CMAF fragmentation.
//
// This is a from-scratch Go port grounded directly on
// original_source/vod/hds/hds_fragment.c and hds_manifest.c: byte layouts,
// atom sizing, and the cross-track interleaving algorithm all follow those
// files.
package hds

// RescaleTime rescales a duration or timestamp from curScale units to
// newScale units, rounding to the nearest integer rather than truncating,
// matching the source's rescale_time macro.
func RescaleTime(t uint64, curScale, newScale uint32) uint64 {
	if curScale == 0 {
		return 0
	}
	return (t*uint64(newScale) + uint64(curScale)/2) / uint64(curScale)
}
