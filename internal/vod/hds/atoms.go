package hds

import "github.com/jmylchreest/vodpackager/internal/vod/model"

const atomHeaderSize = 8

func writeAtomHeader(out []byte, bodyLen int, fourcc string) []byte {
	out = writeBE32(out, uint32(atomHeaderSize+bodyLen))
	return append(out, fourcc...)
}

// afra fixed-part sizes, matching afra_atom_t/afra_entry_t.
const (
	afraFixedBodySize = 1 + 3 + 1 + 4 + 4 // version/flags + extra_flags + timescale + entries
	afraEntrySize     = 8 + 8             // pts + offset
)

// AfraAtomSize returns the full size of the afra box for videoKeyFrameCount
// entries.
func AfraAtomSize(videoKeyFrameCount int) int {
	return atomHeaderSize + afraFixedBodySize + videoKeyFrameCount*afraEntrySize
}

// afraFixedSize is the afra box's size excluding its per-entry table: the
// odd baseline hds_write_tfhd_atom derives track base_data_offset from
// (ignoring the entries themselves, since every track's tfhd shares one
// base_data_offset regardless of key-frame count).
func afraFixedSize() int {
	return atomHeaderSize + afraFixedBodySize
}

func writeAfraHeader(out []byte, videoKeyFrameCount int) []byte {
	out = writeAtomHeader(out, afraFixedBodySize+videoKeyFrameCount*afraEntrySize, "afra")
	out = writeBE32(out, 0)            // version + flags
	out = append(out, 0xC0)            // LongIDs | LongOffsets
	out = writeBE32(out, model.HDSTimescale)
	out = writeBE32(out, uint32(videoKeyFrameCount))
	return out
}

func writeAfraEntry(out []byte, pts, offset uint64) []byte {
	out = writeBE64(out, pts)
	return writeBE64(out, offset)
}

// mfhd: version/flags(4) + sequence_number(4).
const mfhdAtomSize = atomHeaderSize + 4 + 4

func writeMfhd(out []byte, segmentIndex uint32) []byte {
	out = writeAtomHeader(out, 4+4, "mfhd")
	out = writeBE32(out, 0)
	return writeBE32(out, segmentIndex)
}

// tfhd: version/flags(4) + track_id(4) + base_data_offset(8) +
// sample_desc_index(4).
const tfhdAtomSize = atomHeaderSize + 4 + 4 + 8 + 4

func writeTfhd(out []byte, trackID uint32, baseDataOffset uint64) []byte {
	out = writeAtomHeader(out, 4+4+8+4, "tfhd")
	out = writeBE32(out, 3) // flags: base data offset | sample description index
	out = writeBE32(out, trackID)
	out = writeBE64(out, baseDataOffset)
	return writeBE32(out, 1) // sample_desc_index
}

// trun sizes for a single-frame trun atom (HDS never batches more than one
// frame per trun, matching hds_write_single_{video,audio}_frame_trun_atom).
const (
	videoTrunSize = atomHeaderSize + 4 + 4 + 4*5 // flags, frame_count, offset, duration, size, key, pts_delay
	audioTrunSize = atomHeaderSize + 4 + 4 + 4*3 // flags, frame_count, offset, duration, size
)

func writeVideoTrun(out []byte, dataOffset uint32, duration, size uint32, keyFrame bool, ptsDelay uint32) []byte {
	out = writeAtomHeader(out, videoTrunSize-atomHeaderSize, "trun")
	out = writeBE32(out, 0xF01) // data offset, duration, size, key, delay
	out = writeBE32(out, 1)     // frame count
	out = writeBE32(out, dataOffset)
	out = writeBE32(out, duration)
	out = writeBE32(out, size)
	if keyFrame {
		out = writeBE32(out, 0x02000000)
	} else {
		out = writeBE32(out, 0x01010000)
	}
	return writeBE32(out, ptsDelay)
}

func writeAudioTrun(out []byte, dataOffset uint32, duration, size uint32) []byte {
	out = writeAtomHeader(out, audioTrunSize-atomHeaderSize, "trun")
	out = writeBE32(out, 0x301) // data offset, duration, size
	out = writeBE32(out, 1)     // frame count
	out = writeBE32(out, dataOffset)
	out = writeBE32(out, duration)
	return writeBE32(out, size)
}

// trafAtomSize returns the size of one track's moof.traf box: header +
// tfhd + one trun per frame, matching hds_get_traf_atom_size.
func trafAtomSize(mt model.MediaType, frameCount int) int {
	trunSize := audioTrunSize
	if mt == model.Video {
		trunSize = videoTrunSize
	}
	return atomHeaderSize + tfhdAtomSize + frameCount*trunSize
}
