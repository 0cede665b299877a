package hls

import (
	"strings"
	"testing"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMediaPlaylistEndsWithEndlist(t *testing.T) {
	segs := []Segment{
		{URI: "seg-1.f4f", Duration: 4.0},
		{URI: "seg-2.f4f", Duration: 4.0},
		{URI: "seg-3.f4f", Duration: 1.5},
	}
	p, err := BuildMediaPlaylist(segs, 4000)
	require.NoError(t, err)

	out := p.String()
	assert.Contains(t, out, "#EXT-X-VERSION:")
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:1")
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:4")
	assert.Contains(t, out, "#EXTINF:4.000,\nseg-1.f4f")
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, "\n"), "#EXT-X-ENDLIST"))
}

func TestBuildIframePlaylistCarriesByteRanges(t *testing.T) {
	entries := []IframeEntry{
		{URI: "seg-1.ts", Duration: 2.0, Run: TSPacketRun{Size: 1880, Offset: 376}},
		{URI: "seg-1.ts", Duration: 2.0, Run: TSPacketRun{Size: 940, Offset: 2256}},
	}
	p, err := BuildIframePlaylist(entries, 4000)
	require.NoError(t, err)

	out := p.String()
	assert.Contains(t, out, "#EXT-X-I-FRAMES-ONLY")
	assert.Contains(t, out, "#EXT-X-BYTERANGE:1880@376")
	assert.Contains(t, out, "#EXT-X-BYTERANGE:940@2256")
}

type fakeTSMuxer struct {
	offset int64
}

func (m *fakeTSMuxer) MuxFrame(track *model.Track, frame model.Frame, data []byte) (TSPacketRun, error) {
	run := TSPacketRun{Size: int64(len(data)), Offset: m.offset}
	m.offset += int64(len(data))
	return run, nil
}

func (m *fakeTSMuxer) SegmentSize() int64 { return m.offset }

func TestCollectIframeEntriesOnePerKeyFrame(t *testing.T) {
	// A track as parser.Parse actually produces one: PTS/DTS rebased to the
	// 90 kHz normalised timescale by Track.Normalize, but Timescale itself
	// left at its native value (1000 here) and Duration still expressed in
	// that native timescale. A track built with Timescale:
	// model.NormalizedTimescale would hide a scale-mixing bug between PTS
	// (always 90 kHz) and Duration (always native).
	const nativeTimescale = 1000
	track := &model.Track{
		MediaType: model.Video,
		Timescale: nativeTimescale,
		Frames: []model.Frame{
			{Size: 100, Duration: 1000, PTS: 0, KeyFrame: true},
			{Size: 50, Duration: 1000, PTS: model.NormalizedTimescale, KeyFrame: false},
			{Size: 100, Duration: 1000, PTS: 2 * model.NormalizedTimescale, KeyFrame: true},
		},
	}
	muxer := &fakeTSMuxer{}
	entries, err := CollectIframeEntries(muxer, track, "seg.ts", func(f model.Frame) ([]byte, error) {
		return make([]byte, f.Size), nil
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].Run.Offset)
	assert.Equal(t, int64(150), entries[1].Run.Offset)
	// entries[0] spans f0 and f1 (f0 to f2's PTS, 2 seconds); entries[1]
	// spans f2 to the track's end (1 second).
	assert.InDelta(t, 2.0, entries[0].Duration, 0.001)
	assert.InDelta(t, 1.0, entries[1].Duration, 0.001)
}
