package hds

import (
	"github.com/jmylchreest/vodpackager/internal/vod/frameio"
	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// FrameBytesFunc fetches one scheduled frame's bytes (plaintext, or
// ciphertext if the fragment is encrypted — encryption happens upstream via
// internal/vod/cenc before WriteBody ever sees the data). It returns
// model.Again when the bytes have not arrived yet; WriteBody propagates that
// unchanged, leaving cursor untouched so the caller can retry the same frame
// later.
type FrameBytesFunc func(ref FrameRef) ([]byte, error)

// writeCodecConfig appends one sequence-header tag per track (its avcC or
// AudioSpecificConfig payload, restated as an Adobe mux tag), matching
// hds_muxer_write_codec_config. dts is the HDS-timescale timestamp every
// track's sequence-header tag shares.
func writeCodecConfig(tracks []*model.Track, dts uint64) []byte {
	out := make([]byte, 0, 64)
	for _, tr := range tracks {
		extra := tr.ExtraData
		switch tr.MediaType {
		case model.Video:
			out = writeVideoTagHeader(out, uint32(len(extra)), uint32(dts), frameTypeKeyFrame, avcPacketTypeSequenceHeader, 0)
		case model.Audio:
			out = writeAudioTagHeader(out, uint32(len(extra)), uint32(dts), computeSoundInfo(tr), aacPacketTypeSequenceHeader)
		}
		out = append(out, extra...)
		out = writeBE32(out, uint32(frameTagSize(tr.MediaType)+len(extra)))
	}
	return out
}

// WriteBody emits the fragment's mdat payload: every frame's mux tag, its
// data (as returned by fetch), and the trailing back-pointer dword, in the
// same DTS-interleaved order BuildFragment scheduled. Video key frames are
// preceded by a fresh codec-config block for every track; an audio-only
// fragment (no video key frames at all) gets that block once, up front,
// matching hds_muxer_process_frames/hds_muxer_start_frame/hds_muxer_end_frame.
//
// cursor lets a caller suspend on model.Again (fetch returned it because the
// frame's bytes have not reached the read cache yet) and resume later
// without re-emitting any frame already written.
func WriteBody(frag *Fragment, cursor *frameio.FrameCursor, fetch FrameBytesFunc, sink frameio.Sink) error {
	if cursor.CurFrame == 0 && frag.VideoKeyFrameCount == 0 {
		if _, err := sink.Write(writeCodecConfig(frag.tracks, frag.audioOnlyFirstDTS)); err != nil {
			return model.NewError(model.IoError, "hds.WriteBody", err)
		}
	}

	for cursor.CurFrame < len(frag.Order) {
		ref := frag.Order[cursor.CurFrame]
		data, err := fetch(ref)
		if err != nil {
			return err
		}

		frame := ref.Track.Frames[ref.Index]
		dts := rescaleDTS(frame.DTS)

		if ref.MediaType == model.Video && ref.KeyFrame {
			if _, err := sink.Write(writeCodecConfig(frag.tracks, dts)); err != nil {
				return model.NewError(model.IoError, "hds.WriteBody", err)
			}
		}

		var tag []byte
		switch ref.MediaType {
		case model.Video:
			frameType := uint8(frameTypeInterFrame)
			if ref.KeyFrame {
				frameType = frameTypeKeyFrame
			}
			compTimeOffset := RescaleTime(uint64(uint32(frame.PTSDelay)), ref.Track.Timescale, model.HDSTimescale)
			tag = writeVideoTagHeader(tag, uint32(len(data)), uint32(dts), frameType, avcPacketTypeNALU, uint32(compTimeOffset))
		case model.Audio:
			tag = writeAudioTagHeader(tag, uint32(len(data)), uint32(dts), computeSoundInfo(ref.Track), aacPacketTypeRaw)
		}

		if _, err := sink.Write(tag); err != nil {
			return model.NewError(model.IoError, "hds.WriteBody", err)
		}
		if _, err := sink.Write(data); err != nil {
			return model.NewError(model.IoError, "hds.WriteBody", err)
		}

		packetSize := uint32(frameTagSize(ref.MediaType)) + uint32(len(data))
		if _, err := sink.Write(writeBE32(nil, packetSize)); err != nil {
			return model.NewError(model.IoError, "hds.WriteBody", err)
		}

		cursor.CurFrame++
	}

	return nil
}
