package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// readStcoEntries reads either stco (32-bit) or co64 (64-bit) chunk-offset
// entries.
func readStcoEntries(body []byte, is64 bool) ([]uint64, error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, model.NewError(model.BadData, "parser.readStcoEntries", model.ErrAtomTooSmall)
	}
	count := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]

	width := uint64(4)
	if is64 {
		width = 8
	}
	if uint64(count)*width > uint64(len(rest)) {
		return nil, model.NewError(model.BadData, "parser.readStcoEntries", model.ErrAtomOverflow)
	}
	out := make([]uint64, count)
	for i := range out {
		if is64 {
			out[i] = binary.BigEndian.Uint64(rest[i*8 : i*8+8])
		} else {
			out[i] = uint64(binary.BigEndian.Uint32(rest[i*4 : i*4+4]))
		}
	}
	return out, nil
}

// resolveOffsetsShortCircuit implements the chunk-equals-sample fast path:
// frame i's offset is simply chunkOffsets[firstFrame+i], no chunk walking
// at all.
func resolveOffsetsShortCircuit(chunkOffsets []uint64, frames []model.Frame, firstFrame int) error {
	for i := range frames {
		idx := firstFrame + i
		if idx >= len(chunkOffsets) {
			return model.NewError(model.BadData, "parser.resolveOffsetsShortCircuit", model.ErrAtomOverflow)
		}
		frames[i].Offset = int64(chunkOffsets[idx])
	}
	return nil
}

// resolveOffsetsGeneral implements spec §4.1 step 8's general path: the
// first kept frame's offset is the chunk's base offset plus
// first_frame_chunk_offset; every subsequent kept frame either advances by
// the previous frame's size (same chunk) or re-reads the chunk's base
// offset (chunk boundary crossed). Chunk indices must be non-decreasing —
// guaranteed by stsc construction, but re-checked here defensively.
func resolveOffsetsGeneral(chunkOffsets []uint64, ca *chunkAssignment, sizes *stszSizes, frames []model.Frame, firstFrame int) error {
	chunkBase := func(chunk uint32) (uint64, error) {
		if chunk == 0 || int(chunk) > len(chunkOffsets) {
			return 0, model.NewError(model.BadData, "parser.resolveOffsetsGeneral", model.ErrAtomOverflow)
		}
		return chunkOffsets[chunk-1], nil
	}

	base, err := chunkBase(ca.chunkOf[firstFrame])
	if err != nil {
		return err
	}
	offset := base + firstFrameChunkOffset(sizes, ca, firstFrame)
	frames[0].Offset = int64(offset)
	prevChunk := ca.chunkOf[firstFrame]

	for i := 1; i < len(frames); i++ {
		globalIdx := firstFrame + i
		chunk := ca.chunkOf[globalIdx]
		if chunk < prevChunk {
			return model.NewError(model.BadData, "parser.resolveOffsetsGeneral", model.ErrChunkIndexNonMonotonic)
		}
		if chunk != prevChunk {
			base, err = chunkBase(chunk)
			if err != nil {
				return err
			}
			offset = base
		} else {
			offset += uint64(frames[i-1].Size)
		}
		frames[i].Offset = int64(offset)
		prevChunk = chunk
	}
	return nil
}
