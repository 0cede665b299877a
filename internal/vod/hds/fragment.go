package hds

import (
	"log/slog"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// FrameRef identifies one scheduled frame within a fragment's
// DTS-interleaved play order.
type FrameRef struct {
	Track        *model.Track
	Index        int
	MediaType    model.MediaType
	KeyFrame     bool
	OutputOffset uint32 // byte offset of this frame's data (just past its tag header), from the start of the mdat box including its header
}

// Fragment is the result of the header-construction pass: every byte up to
// (but not including) the per-frame payload data, plus the bookkeeping
// WriteBody needs to lay out that payload identically.
type Fragment struct {
	Header             []byte
	TotalSize           int
	CodecConfigSize     int
	VideoKeyFrameCount  int
	Order               []FrameRef
	audioOnlyFirstDTS   uint64
	tracks              []*model.Track
}

// buildStream is the transient per-track scheduling state used only while
// computing the DTS-interleaved frame order, matching
// hds_muxer_stream_state_t's next_frame_* fields.
type buildStream struct {
	track        *model.Track
	nextIdx      int
	nextFrameDTS uint64 // HDS-scale (1000 Hz)
}

func newBuildStreams(tracks []*model.Track) []*buildStream {
	streams := make([]*buildStream, len(tracks))
	for i, tr := range tracks {
		var dts uint64
		if len(tr.Frames) > 0 {
			dts = rescaleDTS(tr.Frames[0].DTS)
		}
		streams[i] = &buildStream{track: tr, nextFrameDTS: dts}
	}
	return streams
}

func rescaleDTS(dts int64) uint64 {
	if dts < 0 {
		dts = 0
	}
	return RescaleTime(uint64(dts), model.NormalizedTimescale, model.HDSTimescale)
}

// chooseStream returns the not-yet-exhausted stream with the lowest
// next_frame_dts, matching hds_muxer_choose_stream. Every frame in the
// fragment's mdat (and its trun entries) is emitted in this order: frames
// from every track are globally DTS-interleaved, not written track by
// track.
func chooseStream(streams []*buildStream) *buildStream {
	var result *buildStream
	for _, s := range streams {
		if s.nextIdx >= len(s.track.Frames) {
			continue
		}
		if result == nil || s.nextFrameDTS < result.nextFrameDTS {
			result = s
		}
	}
	return result
}

func codecConfigSizeFor(tracks []*model.Track) int {
	total := 0
	for _, tr := range tracks {
		total += frameTagSize(tr.MediaType) + backPointerSize + len(tr.ExtraData)
	}
	return total
}

// BuildFragment runs the header-construction pass for one HDS fragment
// covering every frame of every given track (the whole clip, one fragment
// per clip, spec §3): it computes atom sizes, the afra keyframe index, the
// DTS-interleaved play order, and every frame's final byte offset, mirroring
// hds_muxer_init_fragment + hds_calculate_output_offsets_and_write_afra_entries.
//
// logger receives structural-violation logs per spec §7; a nil logger
// defaults to slog.Default().
func BuildFragment(tracks []*model.Track, segmentIndex uint32, logger *slog.Logger) (*Fragment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(tracks) == 0 {
		err := model.NewError(model.BadData, "hds.BuildFragment", model.ErrNoFramesInSequence)
		model.LogError(logger, "hds.BuildFragment", err)
		return nil, err
	}

	frameCount := 0
	videoKeyFrameCount := 0
	totalFramesSize := 0
	moofAtomSize := atomHeaderSize + mfhdAtomSize
	for _, tr := range tracks {
		moofAtomSize += trafAtomSize(tr.MediaType, len(tr.Frames))
		frameCount += len(tr.Frames)
		for _, f := range tr.Frames {
			totalFramesSize += int(f.Size)
			if tr.MediaType == model.Video && f.KeyFrame {
				videoKeyFrameCount++
			}
		}
	}

	codecConfigSize := codecConfigSizeFor(tracks)

	mdatAtomSize := atomHeaderSize + totalFramesSize
	for _, tr := range tracks {
		mdatAtomSize += len(tr.Frames) * (frameTagSize(tr.MediaType) + backPointerSize)
	}
	mdatAtomSize += videoKeyFrameCount * codecConfigSize

	afraSize := AfraAtomSize(videoKeyFrameCount)

	// Audio-only fragments (no video key frames at all) carry the codec
	// config once, up front in mdat; fragments with video repeat it before
	// every key frame instead (already folded into mdatAtomSize above).
	if videoKeyFrameCount == 0 {
		mdatAtomSize += codecConfigSize
	}
	totalSize := afraSize + moofAtomSize + mdatAtomSize

	streams := newBuildStreams(tracks)
	order := make([]FrameRef, 0, frameCount)
	afraEntriesBase := uint64(afraSize + moofAtomSize)
	afraEntries := make([]model.AfraEntry, 0, videoKeyFrameCount)

	curOffset := uint32(atomHeaderSize) // mdat's own header
	if videoKeyFrameCount == 0 {
		// WriteBody emits the audio-only codec config block first.
		curOffset += uint32(codecConfigSize)
	}
	for {
		s := chooseStream(streams)
		if s == nil {
			break
		}
		frame := s.track.Frames[s.nextIdx]
		if s.track.MediaType == model.Video && frame.KeyFrame {
			afraEntries = append(afraEntries, model.AfraEntry{
				PTS:    s.nextFrameDTS,
				Offset: uint64(curOffset) + afraEntriesBase,
			})
			curOffset += uint32(codecConfigSize)
		}

		curOffset += uint32(frameTagSize(s.track.MediaType))
		order = append(order, FrameRef{
			Track:        s.track,
			Index:        s.nextIdx,
			MediaType:    s.track.MediaType,
			KeyFrame:     frame.KeyFrame,
			OutputOffset: curOffset,
		})
		curOffset += frame.Size + backPointerSize

		s.nextIdx++
		if s.nextIdx < len(s.track.Frames) {
			next := s.track.Frames[s.nextIdx]
			s.nextFrameDTS = rescaleDTS(next.DTS)
		}
	}

	header := make([]byte, 0, afraSize+moofAtomSize+atomHeaderSize)
	header = writeAfraHeader(header, videoKeyFrameCount)
	for _, e := range afraEntries {
		header = writeAfraEntry(header, e.PTS, e.Offset)
	}

	header = writeAtomHeader(header, moofAtomSize-atomHeaderSize, "moof")
	header = writeMfhd(header, segmentIndex)

	baseDataOffset := uint64(afraFixedSize() + moofAtomSize)
	outputOffsetsByTrack := make(map[*model.Track][]uint32, len(tracks))
	for _, tr := range tracks {
		offs := make([]uint32, len(tr.Frames))
		outputOffsetsByTrack[tr] = offs
	}
	for _, ref := range order {
		outputOffsetsByTrack[ref.Track][ref.Index] = ref.OutputOffset
	}

	for _, tr := range tracks {
		header = writeAtomHeader(header, trafAtomSize(tr.MediaType, len(tr.Frames))-atomHeaderSize, "traf")
		// Every traf's track_id is 1: HDS clients pair a traf with its
		// track by position within moof, not by track_id.
		header = writeTfhd(header, 1, baseDataOffset)

		offs := outputOffsetsByTrack[tr]
		for idx, f := range tr.Frames {
			if tr.MediaType == model.Video {
				// trun's pts_delay field carries the raw, un-rescaled ctts
				// value (two's-complement bit pattern): only the video
				// tag's own comp_time_offset sub-header (written per-frame
				// in the body pass) is rescaled to the HDS timescale.
				header = writeVideoTrun(header, offs[idx], f.Duration, f.Size, f.KeyFrame, uint32(f.PTSDelay))
			} else {
				header = writeAudioTrun(header, offs[idx], f.Duration, f.Size)
			}
		}
	}

	header = writeAtomHeader(header, mdatAtomSize-atomHeaderSize, "mdat")

	frag := &Fragment{
		Header:             header,
		TotalSize:          totalSize,
		CodecConfigSize:    codecConfigSize,
		VideoKeyFrameCount: videoKeyFrameCount,
		Order:              order,
		tracks:             tracks,
	}
	if videoKeyFrameCount == 0 && len(tracks[0].Frames) > 0 {
		frag.audioOnlyFirstDTS = rescaleDTS(tracks[0].Frames[0].DTS)
	}
	return frag, nil
}
