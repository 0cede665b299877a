package cenc

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

const atomHeaderSize = 8

func writeAtomHeader(fourcc string, bodyLen int) []byte {
	out := make([]byte, atomHeaderSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(atomHeaderSize+bodyLen))
	copy(out[4:8], fourcc)
	return out
}

// defaultAuxiliarySampleSize returns the common per-sample aux size if
// every entry shares one, or 0 if entries vary (in which case saiz must
// carry an explicit per-sample size table), matching
// mp4_encrypt_video_calc_default_auxiliary_sample_size.
func defaultAuxiliarySampleSize(entries []model.AuxEntry) uint8 {
	if len(entries) == 0 {
		return 0
	}
	first := entries[0].SampleAuxSize()
	for _, e := range entries[1:] {
		if e.SampleAuxSize() != uint32(first) {
			return 0
		}
	}
	if first > 255 {
		return 0
	}
	return uint8(first)
}

// BuildSaiz builds the moof.traf.saiz box: a fixed- or per-sample
// auxiliary-information-size table (spec §4.3, ISO/IEC 14496-12 §8.7.9).
func BuildSaiz(entries []model.AuxEntry) []byte {
	def := defaultAuxiliarySampleSize(entries)

	bodyLen := 4 + 1 + 4
	if def == 0 {
		bodyLen += len(entries)
	}
	out := writeAtomHeader("saiz", bodyLen)
	out = append(out, 0, 0, 0, 0) // version, flags
	out = append(out, def)
	out = binary.BigEndian.AppendUint32(out, uint32(len(entries)))
	if def == 0 {
		for _, e := range entries {
			out = append(out, uint8(e.SampleAuxSize()))
		}
	}
	return out
}

// BuildSaio builds the moof.traf.saio box: a single entry pointing at the
// absolute offset of the auxiliary data block within the fragment (spec
// §4.3, ISO/IEC 14496-12 §8.7.8). Only one entry is ever emitted: all of a
// fragment's per-sample auxiliary data is laid out contiguously.
func BuildSaio(auxiliaryDataOffset uint32) []byte {
	bodyLen := 4 + 4 + 4
	out := writeAtomHeader("saio", bodyLen)
	out = append(out, 0, 0, 0, 0) // version, flags
	out = binary.BigEndian.AppendUint32(out, 1)
	out = binary.BigEndian.AppendUint32(out, auxiliaryDataOffset)
	return out
}

// BuildAuxiliaryData serialises the per-sample auxiliary data block the
// saio offset points at: each entry's 16-byte IV, its subsample count, and
// its (clear, encrypted) byte-count pairs, in Entries order.
func BuildAuxiliaryData(entries []model.AuxEntry) []byte {
	var total int
	for _, e := range entries {
		total += int(e.SampleAuxSize())
	}
	out := make([]byte, 0, total)
	for _, e := range entries {
		out = append(out, e.IV[:]...)
		if len(e.Subsamples) == 0 {
			// Audio rows carry no subsample structure at all (spec §4.3,
			// matching mp4_encrypt_audio_write_auxiliary_data): just the IV.
			continue
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(e.Subsamples)))
		for _, s := range e.Subsamples {
			out = binary.BigEndian.AppendUint16(out, s.BytesClear)
			out = binary.BigEndian.AppendUint32(out, s.BytesEncrypted)
		}
	}
	return out
}
