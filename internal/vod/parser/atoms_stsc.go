package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
	descIndex       uint32
}

func readStscEntries(body []byte) ([]stscEntry, error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, model.NewError(model.BadData, "parser.readStscEntries", model.ErrAtomTooSmall)
	}
	count := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(count)*12 > uint64(len(rest)) {
		return nil, model.NewError(model.BadData, "parser.readStscEntries", model.ErrAtomOverflow)
	}
	out := make([]stscEntry, count)
	for i := range out {
		off := i * 12
		out[i] = stscEntry{
			firstChunk:      binary.BigEndian.Uint32(rest[off : off+4]),
			samplesPerChunk: binary.BigEndian.Uint32(rest[off+4 : off+8]),
			descIndex:       binary.BigEndian.Uint32(rest[off+8 : off+12]),
		}
	}
	return out, nil
}

// isChunkEqualsSample reports the degenerate single-entry case {first_chunk:
// 1, samples_per_chunk: 1, desc: 1} where chunk and sample coincide: the
// parser then short-circuits straight to an indexed stco read, performing
// no chunk iteration at all (spec §4.1 step 6, tested round-trip scenario
// 2).
func isChunkEqualsSample(entries []stscEntry) bool {
	return len(entries) == 1 && entries[0].firstChunk == 1 && entries[0].samplesPerChunk == 1 && entries[0].descIndex == 1
}

// chunkAssignment is the per-sample bookkeeping the general (non
// chunk-equals-sample) stco resolver needs: which 1-based chunk each
// global sample up to globalLast belongs to, and how many samples in that
// same chunk precede it (used to compute stsz's first_frame_chunk_offset).
type chunkAssignment struct {
	chunkOf          []uint32 // length globalLast; chunkOf[0..firstFrame) is still populated since stsz needs it for offset accounting
	samplesBeforeIn  []uint32
}

// assignChunks walks the stsc entries chunk by chunk, assigning every global
// sample in [0, globalLast) to a chunk and stopping once globalLast samples
// are assigned. Chunk indices are proven monotonic by construction;
// resolveOffsetsGeneral defensively re-checks this.
func assignChunks(entries []stscEntry, globalLast int) (*chunkAssignment, error) {
	ca := &chunkAssignment{
		chunkOf:         make([]uint32, globalLast),
		samplesBeforeIn: make([]uint32, globalLast),
	}
	if len(entries) == 0 {
		return ca, nil
	}

	globalIdx := 0
	for i, e := range entries {
		chunkEnd := ^uint32(0) // unbounded: last entry covers all remaining chunks
		if i+1 < len(entries) {
			chunkEnd = entries[i+1].firstChunk
		}
		for chunk := e.firstChunk; chunk < chunkEnd && globalIdx < globalLast; chunk++ {
			for s := uint32(0); s < e.samplesPerChunk && globalIdx < globalLast; s++ {
				ca.chunkOf[globalIdx] = chunk
				ca.samplesBeforeIn[globalIdx] = s
				globalIdx++
			}
		}
		if globalIdx >= globalLast {
			break
		}
	}
	return ca, nil
}
