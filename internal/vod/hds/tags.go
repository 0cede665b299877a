package hds

import "github.com/jmylchreest/vodpackager/internal/vod/model"

// Adobe mux tag type and codec identifiers, matching hds_fragment.c and
// hds_amf0_encoder.h.
const (
	tagTypeAudio = 8
	tagTypeVideo = 9

	codecIDAVC = 0x7

	avcPacketTypeSequenceHeader = 0
	avcPacketTypeNALU           = 1

	frameTypeKeyFrame   = 1
	frameTypeInterFrame = 2

	aacPacketTypeSequenceHeader = 0
	aacPacketTypeRaw            = 1

	soundFormatAAC = 0xA

	// adobeMuxPacketHeaderSize is sizeof(adobe_mux_packet_header_t): tag
	// type(1) + data_size(3) + timestamp(3) + timestamp_ext(1) +
	// stream_id(3).
	adobeMuxPacketHeaderSize = 11
	videoTagHeaderSize       = 5 // frame_type/codec_id(1) + avc_packet_type(1) + comp_time_offset(3)
	audioTagHeaderSize       = 2 // sound_info(1) + aac_packet_type(1)

	videoFrameTagSize = adobeMuxPacketHeaderSize + videoTagHeaderSize
	audioFrameTagSize = adobeMuxPacketHeaderSize + audioTagHeaderSize

	// backPointerSize is the trailing "previous tag size" dword every
	// Adobe mux packet is followed by.
	backPointerSize = 4
)

// frameTagSize returns the fixed mux-tag-header size for a media type,
// matching tag_size_by_media_type.
func frameTagSize(mt model.MediaType) int {
	if mt == model.Video {
		return videoFrameTagSize
	}
	return audioFrameTagSize
}

func writeBE24(out []byte, v uint32) []byte {
	return append(out, byte(v>>16), byte(v>>8), byte(v))
}

func writeBE32(out []byte, v uint32) []byte {
	return append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func writeBE64(out []byte, v uint64) []byte {
	out = writeBE32(out, uint32(v>>32))
	return writeBE32(out, uint32(v))
}

// writeAdobeMuxPacketHeader appends the 11-byte packet header shared by
// video and audio tags, matching hds_write_adobe_mux_packet_header.
func writeAdobeMuxPacketHeader(out []byte, tagType uint8, dataSize uint32, timestamp uint32) []byte {
	out = append(out, tagType)
	out = writeBE24(out, dataSize)
	out = writeBE24(out, timestamp)
	out = append(out, byte(timestamp>>24))
	out = writeBE24(out, 0) // stream id
	return out
}

// writeVideoTagHeader appends a full video tag header (mux header plus the
// 5-byte AVC sub-header), matching hds_write_video_tag_header. dataSize is
// the size of the frame payload that follows (excluding this header).
func writeVideoTagHeader(out []byte, dataSize uint32, timestamp uint32, frameType uint8, avcPacketType uint8, compTimeOffset uint32) []byte {
	dataSize += videoTagHeaderSize
	out = writeAdobeMuxPacketHeader(out, tagTypeVideo, dataSize, timestamp)
	out = append(out, (frameType<<4)|codecIDAVC)
	out = append(out, avcPacketType)
	out = writeBE24(out, compTimeOffset)
	return out
}

// writeAudioTagHeader appends a full audio tag header (mux header plus the
// 2-byte AAC sub-header), matching hds_write_audio_tag_header.
func writeAudioTagHeader(out []byte, dataSize uint32, timestamp uint32, soundInfo uint8, aacPacketType uint8) []byte {
	dataSize += audioTagHeaderSize
	out = writeAdobeMuxPacketHeader(out, tagTypeAudio, dataSize, timestamp)
	out = append(out, soundInfo)
	out = append(out, aacPacketType)
	return out
}

// computeSoundInfo packs an audio track's sample rate, bit depth and
// channel count into the single sound_info byte HDS audio tags carry,
// matching hds_get_sound_info. Only AAC is produced: the source's MP3
// branch has no place in this packager (no MP3 track ever reaches the HDS
// muxer, spec Non-goals).
func computeSoundInfo(track *model.Track) uint8 {
	var soundRate uint8
	switch {
	case track.SampleRate <= 8000:
		soundRate = 0
	case track.SampleRate <= 16000:
		soundRate = 1
	case track.SampleRate <= 32000:
		soundRate = 2
	default:
		soundRate = 3
	}

	var soundSize uint8
	if track.BitsPerSample == 8 {
		soundSize = 0
	} else {
		soundSize = 1
	}

	var soundType uint8
	if track.Channels == 1 {
		soundType = 0
	} else {
		soundType = 1
	}

	return (soundFormatAAC << 4) | (soundRate << 2) | (soundSize << 1) | soundType
}
