package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

type sttsEntry struct {
	count    uint32
	duration uint32
}

func readSttsEntries(body []byte) ([]sttsEntry, error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, model.NewError(model.BadData, "parser.readSttsEntries", model.ErrAtomTooSmall)
	}
	count := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(count)*8 > uint64(len(rest)) {
		return nil, model.NewError(model.BadData, "parser.readSttsEntries", model.ErrAtomOverflow)
	}
	out := make([]sttsEntry, count)
	for i := range out {
		out[i] = sttsEntry{
			count:    binary.BigEndian.Uint32(rest[i*8 : i*8+4]),
			duration: binary.BigEndian.Uint32(rest[i*8+4 : i*8+8]),
		}
	}
	return out, nil
}

// buildFrameWindow applies the clip window [startTicks, endTicks) (already
// converted to the track's timescale) over the stts entries, per spec
// §4.1 step 4: whole entries entirely before start are skipped, the entry
// straddling start is trimmed, and emission stops once the running
// accumulated duration reaches end. endTicks == 0 means "no upper bound".
// It returns the windowed frames (PTS==DTS==running accumulated duration,
// in track timescale), the global index of the first emitted sample
// (firstFrame) and one past the global index of the last emitted sample
// (globalLast) — the bounds every later atom (ctts/stsc/stsz/stco/stss)
// resolves against, since they are indexed by global sample number rather
// than window-relative position. Entries past the window's end are not
// visited at all.
func buildFrameWindow(entries []sttsEntry, startTicks, endTicks uint64) (frames []model.Frame, firstFrame, globalLast int, err error) {
	var accum uint64
	globalIdx := 0
	firstFrame = -1

outer:
	for _, e := range entries {
		if e.duration == 0 && e.count > 0 {
			return nil, 0, 0, model.NewError(model.BadData, "parser.buildFrameWindow", model.ErrZeroSampleDuration)
		}
		entryTotal := uint64(e.count) * uint64(e.duration)

		if firstFrame < 0 && accum+entryTotal <= startTicks {
			// Entire entry lies before the window start; skip it without
			// emitting any frames, but still advance the running totals.
			accum += entryTotal
			globalIdx += int(e.count)
			continue
		}

		skip := 0
		if firstFrame < 0 && accum < startTicks {
			skip = int((startTicks - accum) / uint64(e.duration))
		}

		for i := 0; i < int(e.count); i++ {
			if i < skip {
				globalIdx++
				continue
			}
			pos := accum + uint64(i)*uint64(e.duration)
			if endTicks > 0 && pos >= endTicks {
				break outer
			}
			if firstFrame < 0 {
				firstFrame = globalIdx
			}
			frames = append(frames, model.Frame{
				Duration: e.duration,
				PTS:      int64(pos),
				DTS:      int64(pos),
				KeyFrame: true,
			})
			globalIdx++
		}
		accum += entryTotal
	}

	if firstFrame < 0 || len(frames) == 0 {
		return nil, 0, 0, model.NewError(model.BadRequest, "parser.buildFrameWindow", model.ErrNoFramesInWindow)
	}
	return frames, firstFrame, firstFrame + len(frames), nil
}

type cttsEntry struct {
	count  uint32
	offset int32
}

func readCttsEntries(body []byte) ([]cttsEntry, error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, model.NewError(model.BadData, "parser.readCttsEntries", model.ErrAtomTooSmall)
	}
	count := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(count)*8 > uint64(len(rest)) {
		return nil, model.NewError(model.BadData, "parser.readCttsEntries", model.ErrAtomOverflow)
	}
	out := make([]cttsEntry, count)
	for i := range out {
		out[i] = cttsEntry{
			count:  binary.BigEndian.Uint32(rest[i*8 : i*8+4]),
			offset: int32(binary.BigEndian.Uint32(rest[i*8+4 : i*8+8])),
		}
	}
	return out, nil
}

// applyCtts adds composition offsets to the windowed frames' PTS, tracking
// dts_shift as the maximum of -entry.offset across negative-offset entries
// (spec property P7), then shifts every kept frame's PTS by +dts_shift so
// the final PTS is never negative. globalFirst/globalLast bound the window
// in the full track's sample numbering.
func applyCtts(entries []cttsEntry, frames []model.Frame, globalFirst, globalLast int) {
	var dtsShift int64
	globalIdx := 0
	for _, e := range entries {
		if e.offset < 0 {
			shift := int64(-e.offset)
			if shift > dtsShift {
				dtsShift = shift
			}
		}
		for i := 0; i < int(e.count); i++ {
			if globalIdx >= globalFirst && globalIdx < globalLast {
				f := &frames[globalIdx-globalFirst]
				f.PTSDelay = e.offset
				f.PTS += int64(e.offset)
			}
			globalIdx++
		}
	}
	if dtsShift == 0 {
		return
	}
	for i := range frames {
		frames[i].PTS += dtsShift
	}
}
