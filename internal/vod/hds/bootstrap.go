package hds

import (
	"encoding/base64"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// FragmentRun describes one contiguous run of same-duration fragments
// within a segment, matching hds_manifest.c's segment_duration_item_t /
// afrt_entry_t pairing: a fragment index where the run starts, its
// HDS-timescale start timestamp, and its per-fragment duration.
type FragmentRun struct {
	FirstFragment      uint32
	FirstFragmentPTS   uint64 // HDS timescale
	FragmentDuration   uint32 // HDS timescale
}

// BootstrapInfo holds everything BuildAbst needs to serialise one abst box:
// one segment (HDS always uses a single logical segment per presentation in
// this packager, spec Non-goals: multi-segment live rollover) containing
// fragmentCount fragments, plus the fragment-run table.
type BootstrapInfo struct {
	CurrentMediaTime uint64 // HDS timescale
	Live             bool
	FragmentCount    uint32
	Runs             []FragmentRun
	PresentationEnd  bool
}

const (
	abstFixedBodySize = 4 + 4 + 1 + 4 + 8 + 8 + 1 + 1 + 1 + 1 + 1 + 1 // version+flags, bootstrap version, profile/live/update, timescale, current_media_time, smpte_offset, movie_id, server_entries, quality_entries, drm_data, metadata, segment_run_table_count
	asrtAtomSize       = atomHeaderSize + 4 + 1 + 4 + 4 + 4           // header + version/flags + quality_entries + segment_run_entries + one entry(first_segment+fragments_per_segment)
	afrtEntrySize      = 4 + 8 + 4                                   // first_fragment + first_fragment_timestamp + fragment_duration
)

// AbstAtomSize returns the full byte size BuildAbst will produce for info,
// matching hds_get_abst_atom_size.
func AbstAtomSize(info BootstrapInfo) int {
	entries := len(info.Runs)
	extra := 0
	if info.PresentationEnd {
		entries++
		extra++ // trailing discontinuity indicator byte
	}
	afrtAtomSize := atomHeaderSize + 4 + 4 + 1 + 4 + entries*afrtEntrySize + extra
	return atomHeaderSize + abstFixedBodySize + asrtAtomSize + 1 /* fragment run table count */ + afrtAtomSize
}

// BuildAbst serialises the bootstrap (abst) box a manifest embeds: the
// asrt segment-run table and the afrt fragment-run table, matching
// hds_write_abst_atom.
func BuildAbst(info BootstrapInfo) []byte {
	size := AbstAtomSize(info)
	out := make([]byte, 0, size)

	out = writeAtomHeader(out, size-atomHeaderSize, "abst")
	out = writeBE32(out, 0) // version + flags
	out = writeBE32(out, 1) // bootstrap info version
	var profileLiveUpdate byte
	if info.Live {
		profileLiveUpdate = 0x20
	}
	out = append(out, profileLiveUpdate)
	out = writeBE32(out, model.HDSTimescale)
	out = writeBE64(out, info.CurrentMediaTime)
	out = writeBE64(out, 0) // smpte offset
	out = append(out, 0)    // movie identifier (empty string)
	out = append(out, 0)    // server entries
	out = append(out, 0)    // quality entries
	out = append(out, 0)    // drm data (empty string)
	out = append(out, 0)    // metadata (empty string)
	out = append(out, 1)    // segment run table count

	out = writeAtomHeader(out, asrtAtomSize-atomHeaderSize, "asrt")
	out = writeBE32(out, 0) // version + flags
	out = append(out, 0)    // quality entries
	out = writeBE32(out, 1) // segment run entries
	out = writeBE32(out, 1) // first segment
	fragmentsPerSegment := info.FragmentCount
	if fragmentsPerSegment == 0 {
		fragmentsPerSegment = 1
	}
	out = writeBE32(out, fragmentsPerSegment) // fragments per segment

	out = append(out, 1) // fragment run table count

	entries := len(info.Runs)
	if info.PresentationEnd {
		entries++
	}
	afrtBodySize := 4 + 4 + 1 + 4 + entries*afrtEntrySize
	if info.PresentationEnd {
		afrtBodySize++
	}
	out = writeAtomHeader(out, afrtBodySize, "afrt")
	out = writeBE32(out, 0) // version + flags
	out = writeBE32(out, model.HDSTimescale)
	out = append(out, 0) // quality entries
	out = writeBE32(out, uint32(entries))

	for _, r := range info.Runs {
		out = writeBE32(out, r.FirstFragment)
		out = writeBE64(out, r.FirstFragmentPTS)
		out = writeBE32(out, r.FragmentDuration)
	}

	if info.PresentationEnd {
		out = writeBE32(out, 0)
		out = writeBE64(out, 0)
		out = writeBE32(out, 0)
		out = append(out, 0) // discontinuity indicator: end of presentation
	}

	return out
}

// WriteBase64Abst serialises and base64-encodes the abst box, matching
// hds_write_base64_abst_atom: manifests carry the bootstrap info inline as
// base64 text when not served as a separate .bootstrap resource.
func WriteBase64Abst(info BootstrapInfo) string {
	return base64.StdEncoding.EncodeToString(BuildAbst(info))
}
