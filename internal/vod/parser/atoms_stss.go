package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// applyStss resolves sync-sample flags onto the windowed frames (spec §4.1
// step 9). Absent stss means every sample is a sync sample, the default
// buildFrameWindow already leaves in place. When present, stss entries are
// 1-based global sample numbers; every kept frame is first reset to
// KeyFrame=false, then entries that fall inside [firstFrame, globalLast) are
// set true.
func applyStss(body []byte, frames []model.Frame, firstFrame, globalLast int) error {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return err
	}
	if len(rest) < 4 {
		return model.NewError(model.BadData, "parser.applyStss", model.ErrAtomTooSmall)
	}
	count := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(count)*4 > uint64(len(rest)) {
		return model.NewError(model.BadData, "parser.applyStss", model.ErrAtomOverflow)
	}

	for i := range frames {
		frames[i].KeyFrame = false
	}

	for i := uint32(0); i < count; i++ {
		sample := binary.BigEndian.Uint32(rest[i*4 : i*4+4])
		globalIdx := int(sample) - 1
		if globalIdx < firstFrame || globalIdx >= globalLast {
			continue
		}
		frames[globalIdx-firstFrame].KeyFrame = true
	}
	return nil
}
