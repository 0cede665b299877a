package hls

import (
	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/mogiioin/hls-m3u8/m3u8"
)

// segmentDurationSeconds rounds a segment's duration in milliseconds to the
// nearest second for #EXT-X-TARGETDURATION, matching spec §6
// ("round(segment_duration_sec)").
func segmentDurationSeconds(segmentDurationMS uint32) uint {
	return uint((segmentDurationMS + 500) / 1000)
}

// Segment is one media segment the core has already produced (HDS/CENC
// fragment or a TS-muxed file), ready to be named in an M3U8 media
// playlist.
type Segment struct {
	URI      string
	Duration float64
}

// BuildMediaPlaylist assembles a VOD media playlist: version 3,
// #EXT-X-MEDIA-SEQUENCE:1, one #EXTINF + URI per segment, terminated by
// #EXT-X-ENDLIST (spec §6). segmentDurationMS sets the target duration;
// individual segment durations may vary (the last segment is commonly
// shorter).
func BuildMediaPlaylist(segments []Segment, segmentDurationMS uint32) (*m3u8.MediaPlaylist, error) {
	p, err := m3u8.NewMediaPlaylist(0, uint(len(segments)))
	if err != nil {
		return nil, model.NewError(model.Unexpected, "hls.BuildMediaPlaylist", err)
	}
	p.MediaType = m3u8.VOD
	p.SeqNo = 1
	p.SetTargetDuration(segmentDurationSeconds(segmentDurationMS))

	for _, seg := range segments {
		if err := p.Append(seg.URI, seg.Duration, ""); err != nil {
			return nil, model.NewError(model.Unexpected, "hls.BuildMediaPlaylist", err)
		}
	}
	p.Close()
	return p, nil
}

// BuildIframePlaylist assembles the companion I-frame playlist: the same
// shape as a media playlist, but #EXT-X-I-FRAMES-ONLY is set and every
// entry carries an #EXT-X-BYTERANGE for its key frame's byte span within
// the segment (spec §6, "Iframes playlist additionally carries
// #EXT-X-I-FRAMES-ONLY and per-iframe #EXT-X-BYTERANGE:size@offset").
func BuildIframePlaylist(entries []IframeEntry, segmentDurationMS uint32) (*m3u8.MediaPlaylist, error) {
	p, err := m3u8.NewMediaPlaylist(0, uint(len(entries)))
	if err != nil {
		return nil, model.NewError(model.Unexpected, "hls.BuildIframePlaylist", err)
	}
	p.MediaType = m3u8.VOD
	p.SeqNo = 1
	p.SetIframeOnly()
	p.SetTargetDuration(segmentDurationSeconds(segmentDurationMS))

	for _, e := range entries {
		seg := &m3u8.MediaSegment{
			URI:      e.URI,
			Duration: e.Duration,
			Limit:    e.Run.Size,
			Offset:   e.Run.Offset,
		}
		if err := p.AppendSegment(seg); err != nil {
			return nil, model.NewError(model.Unexpected, "hls.BuildIframePlaylist", err)
		}
	}
	p.Close()
	return p, nil
}
