// Package hls covers the two HLS contracts the core actually owns: the
// interface an external PES/TS packetiser must satisfy (the TS muxer itself
// is out of core scope, spec §2/§6 "external helper"), and the M3U8 media
// and I-frame playlist text the core builds from a TS muxer's output.
package hls

import "github.com/jmylchreest/vodpackager/internal/vod/model"

// TSPacketRun describes one contiguous run of 188-byte TS packets the
// external muxer wrote for a single frame. Size and Offset are exactly what
// an I-frame playlist's #EXT-X-BYTERANGE entry needs: the byte length of
// the run and its offset from the start of the segment file.
type TSPacketRun struct {
	Size   int64
	Offset int64
}

// TSMuxer is the contract an external PES/TS packetiser must satisfy for
// the core to build HLS playlists from its output. The core never
// implements PES packetisation or 188-byte TS framing itself (spec §2,
// "external helper surfaced as an interface"); it only consumes the byte
// accounting MuxFrame reports back.
type TSMuxer interface {
	// MuxFrame packetises one frame's payload into the TS stream and
	// returns the run of bytes it occupied in the segment, so the core can
	// record an I-frame byte range for key frames.
	MuxFrame(track *model.Track, frame model.Frame, data []byte) (TSPacketRun, error)

	// SegmentSize returns the total byte size of the segment written so
	// far, used to close out the last I-frame's range once the segment is
	// flushed.
	SegmentSize() int64
}

// IframeEntry is one key frame's playlist entry: the segment URI it lives
// in, its presentation duration until the next I-frame (or end of track),
// and the byte range MuxFrame reported.
type IframeEntry struct {
	URI      string
	Duration float64
	Run      TSPacketRun
}

// CollectIframeEntries drives muxer over every frame of the video track in
// presentation order, building one IframeEntry per key frame. segmentURI is
// the URI every entry in this segment shares (the iframe playlist is
// keyed by offset within a single TS segment file, per spec §6).
func CollectIframeEntries(muxer TSMuxer, track *model.Track, segmentURI string, fetch func(model.Frame) ([]byte, error)) ([]IframeEntry, error) {
	var entries []IframeEntry
	var pending *IframeEntry
	var pendingPTS int64

	flush := func(nextPTS int64) {
		if pending == nil {
			return
		}
		// frame.PTS has already been rebased to the 90 kHz normalised
		// timescale by Track.Normalize before this is ever called
		// (parser.Parse is the only producer of tracks this walks), so the
		// duration conversion divides by that fixed timescale, never the
		// track's native one.
		pending.Duration = float64(nextPTS-pendingPTS) / float64(model.NormalizedTimescale)
		entries = append(entries, *pending)
		pending = nil
	}

	for _, f := range track.Frames {
		data, err := fetch(f)
		if err != nil {
			return nil, err
		}
		run, err := muxer.MuxFrame(track, f, data)
		if err != nil {
			return nil, err
		}
		if f.KeyFrame {
			flush(f.PTS)
			pending = &IframeEntry{URI: segmentURI, Run: run}
			pendingPTS = f.PTS
		}
	}
	flush(lastFramePTSPlusDuration(track))
	return entries, nil
}

func lastFramePTSPlusDuration(track *model.Track) int64 {
	if len(track.Frames) == 0 {
		return 0
	}
	last := track.Frames[len(track.Frames)-1]
	// last.PTS is already 90 kHz (Track.Normalize rebases PTS/DTS only);
	// last.Duration is still in the track's native timescale, so it needs
	// the same rescale before the two are added.
	durationNorm := model.RoundDiv(int64(last.Duration), model.NormalizedTimescale, int64(track.Timescale))
	return last.PTS + durationNorm
}
