package hds

import (
	"encoding/base64"
	"math"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// AMF0 type markers, matching
// hds_amf0_encoder.c / hds_amf0_encoder.h.
const (
	amf0TypeNumber     = 0x00
	amf0TypeBoolean    = 0x01
	amf0TypeString     = 0x02
	amf0TypeECMAArray  = 0x08
	amf0TypeObjectEnd  = 0x09
)

func appendAMF0Number(out []byte, v float64) []byte {
	out = append(out, amf0TypeNumber)
	return appendFloat64BE(out, v)
}

func appendFloat64BE(out []byte, v float64) []byte {
	return writeBE64(out, math.Float64bits(v))
}

func appendAMF0Boolean(out []byte, v bool) []byte {
	out = append(out, amf0TypeBoolean)
	if v {
		return append(out, 0x01)
	}
	return append(out, 0x00)
}

func appendAMF0RawString(out []byte, s string) []byte {
	out = append(out, byte(len(s)>>8), byte(len(s)))
	return append(out, s...)
}

func appendAMF0Field(out []byte, key string, v float64) []byte {
	out = appendAMF0RawString(out, key)
	return appendAMF0Number(out, v)
}

func appendAMF0BoolField(out []byte, key string, v bool) []byte {
	out = appendAMF0RawString(out, key)
	return appendAMF0Boolean(out, v)
}

// Metadata holds the subset of an onMetaData payload HDS manifests embed:
// one number/boolean per field hds_amf0_write_metadata produces. Duration
// is only present for VOD media sets.
type Metadata struct {
	IsVOD         bool
	DurationSecs  float64
	HasVideo      bool
	Width, Height float64
	VideoBitrateK float64
	FrameRate     float64
	HasAudio      bool
	AudioBitrateK float64
	SampleRate    float64
	BitsPerSample float64
	Stereo        bool
	FileSize      float64
}

// WriteMetadata serialises an onMetaData AMF0 ECMA array in the same field
// order as hds_amf0_write_metadata.
func WriteMetadata(m Metadata) []byte {
	count := 1 // filesize
	if m.IsVOD {
		count++
	}
	if m.HasVideo {
		count += 5
	}
	if m.HasAudio {
		count += 5
	}

	out := make([]byte, 0, 256)
	out = append(out, amf0TypeString)
	out = appendAMF0RawString(out, "onMetaData")
	out = append(out, amf0TypeECMAArray)
	out = writeBE32(out, uint32(count))

	if m.IsVOD {
		out = appendAMF0Field(out, "duration", m.DurationSecs)
	}
	if m.HasVideo {
		out = appendAMF0Field(out, "width", m.Width)
		out = appendAMF0Field(out, "height", m.Height)
		out = appendAMF0Field(out, "videodatarate", m.VideoBitrateK)
		out = appendAMF0Field(out, "framerate", m.FrameRate)
		out = appendAMF0Field(out, "videocodecid", float64(codecIDAVC))
	}
	if m.HasAudio {
		out = appendAMF0Field(out, "audiodatarate", m.AudioBitrateK)
		out = appendAMF0Field(out, "audiosamplerate", m.SampleRate)
		out = appendAMF0Field(out, "audiosamplesize", m.BitsPerSample)
		out = appendAMF0BoolField(out, "stereo", m.Stereo)
		out = appendAMF0Field(out, "audiocodecid", float64(soundFormatAAC))
	}
	out = appendAMF0Field(out, "filesize", m.FileSize)

	out = append(out, 0, 0, amf0TypeObjectEnd)
	return out
}

// WriteBase64Metadata serialises m and base64-encodes it, matching
// hds_amf0_write_base64_metadata: manifests embed the metadata tag as
// base64 text inside the XML <metadata> element.
func WriteBase64Metadata(m Metadata) string {
	return base64.StdEncoding.EncodeToString(WriteMetadata(m))
}

// MetadataFromTracks builds a Metadata value from one clip's tracks,
// matching hds_amf0_write_metadata's bitrate/geometry extraction.
func MetadataFromTracks(tracks []*model.Track, durationSecs float64, isVOD bool) Metadata {
	m := Metadata{IsVOD: isVOD, DurationSecs: durationSecs}
	var fileSize float64
	for _, tr := range tracks {
		fileSize += trackTotalSize(tr)
		switch tr.MediaType {
		case model.Video:
			m.HasVideo = true
			m.Width = float64(tr.Width)
			m.Height = float64(tr.Height)
			m.VideoBitrateK = trackBitrateKbps(tr)
			m.FrameRate = trackFrameRate(tr)
		case model.Audio:
			m.HasAudio = true
			m.AudioBitrateK = trackBitrateKbps(tr)
			m.SampleRate = float64(tr.SampleRate)
			m.BitsPerSample = float64(tr.BitsPerSample)
			m.Stereo = tr.Channels > 1
		}
	}
	m.FileSize = fileSize
	return m
}

func trackTotalSize(tr *model.Track) float64 {
	var total float64
	for _, f := range tr.Frames {
		total += float64(f.Size)
	}
	return total
}

func trackBitrateKbps(tr *model.Track) float64 {
	if tr.Timescale == 0 || len(tr.Frames) == 0 {
		return 0
	}
	var durationUnits int64
	for _, f := range tr.Frames {
		durationUnits += int64(f.Duration)
	}
	if durationUnits == 0 {
		return 0
	}
	seconds := float64(durationUnits) / float64(tr.Timescale)
	bits := trackTotalSize(tr) * 8
	return bits / seconds / 1000
}

func trackFrameRate(tr *model.Track) float64 {
	if len(tr.Frames) == 0 || tr.Timescale == 0 {
		return 0
	}
	minDuration := tr.Frames[0].Duration
	for _, f := range tr.Frames[1:] {
		if f.Duration < minDuration {
			minDuration = f.Duration
		}
	}
	if minDuration == 0 {
		return 0
	}
	return float64(tr.Timescale) / float64(minDuration)
}
