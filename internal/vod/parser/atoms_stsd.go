package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

const (
	mp4ESDescrTag          = 0x03
	mp4DecConfigDescrTag   = 0x04
	mp4DecSpecificDescrTag = 0x05
)

// classifyHandler maps an hdlr atom's handler_type to a model.MediaType,
// rejecting anything other than video ("vide") or sound ("soun") tracks
// (spec §4.1 step 1: subtitle/text/metadata tracks are skipped entirely).
func classifyHandler(hdlr []byte) (model.MediaType, error) {
	_, rest, err := fullAtomHeader(hdlr)
	if err != nil {
		return 0, err
	}
	// pre_defined(4) + handler_type(4)
	if len(rest) < 8 {
		return 0, model.NewError(model.BadData, "parser.classifyHandler", model.ErrAtomTooSmall)
	}
	switch string(rest[4:8]) {
	case "vide":
		return model.Video, nil
	case "soun":
		return model.Audio, nil
	default:
		return 0, model.NewError(model.BadRequest, "parser.classifyHandler", model.ErrUnsupportedHandler)
	}
}

// stsdVideoInfo/stsdAudioInfo hold the fields applyStsd extracts from the
// first sample entry of an stsd atom. Only the first entry is inspected:
// multiple sample descriptions per track (mid-stream codec changes) are out
// of scope, matching the source.
type stsdVideoInfo struct {
	codecID             string
	width, height       uint32
	extraData           []byte
	nalPacketSizeLength uint8
}

type stsdAudioInfo struct {
	codecID       string
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	extraData     []byte
}

// parseStsdVideo reads the first VisualSampleEntry out of an stsd atom,
// plus the avcC box nested inside it for AVC content.
func parseStsdVideo(body []byte) (*stsdVideoInfo, error) {
	entry, fourcc, err := firstStsdEntry(body)
	if err != nil {
		return nil, err
	}
	// firstStsdEntry strips only the leading size+format (8 bytes); entry
	// still starts with SampleEntry's reserved(6)+data_reference_index(2),
	// followed by the VisualSampleEntry specific fields: pre_defined(2)
	// reserved(2) pre_defined2(12) width(2) height(2) ...
	const visualSampleEntryFixedLen = 8 + 70
	if len(entry) < visualSampleEntryFixedLen {
		return nil, model.NewError(model.BadData, "parser.parseStsdVideo", model.ErrAtomTooSmall)
	}
	width := uint32(binary.BigEndian.Uint16(entry[8+16 : 8+18]))
	height := uint32(binary.BigEndian.Uint16(entry[8+18 : 8+20]))

	info := &stsdVideoInfo{codecID: fourcc, width: width, height: height}

	// Trailing boxes (avcC etc.) start after the fixed-size VisualSampleEntry
	// fields that follow the 8-byte reserved+data_reference_index prefix.
	if len(entry) > visualSampleEntryFixedLen {
		boxes := entry[visualSampleEntryFixedLen:]
		avcC, ok, err := findChild(boxes, "avcC")
		if err != nil {
			return nil, err
		}
		if ok {
			if len(avcC) < 5 {
				return nil, model.NewError(model.BadData, "parser.parseStsdVideo", model.ErrAtomTooSmall)
			}
			info.nalPacketSizeLength = (avcC[4] & 0x03) + 1
			if info.nalPacketSizeLength < model.NALPacketSizeLengthMin || info.nalPacketSizeLength > model.NALPacketSizeLengthMax {
				return nil, model.NewError(model.BadData, "parser.parseStsdVideo", model.ErrUnsupportedFieldSize)
			}
			info.extraData = append([]byte(nil), avcC...)
		}
	}
	return info, nil
}

// parseStsdAudio reads the first AudioSampleEntry out of an stsd atom, plus
// the esds box's DecoderSpecificInfo payload (AAC AudioSpecificConfig etc).
func parseStsdAudio(body []byte) (*stsdAudioInfo, error) {
	entry, fourcc, err := firstStsdEntry(body)
	if err != nil {
		return nil, err
	}
	// AudioSampleEntry specific fields after the 8-byte common SampleEntry
	// remainder: reserved(8) channelcount(2) samplesize(2) pre_defined(2)
	// reserved(2) samplerate(4, 16.16 fixed point).
	if len(entry) < 8+20 {
		return nil, model.NewError(model.BadData, "parser.parseStsdAudio", model.ErrAtomTooSmall)
	}
	channels := binary.BigEndian.Uint16(entry[8+8 : 8+10])
	bitsPerSample := binary.BigEndian.Uint16(entry[8+10 : 8+12])
	sampleRate := binary.BigEndian.Uint32(entry[8+16:8+20]) >> 16

	info := &stsdAudioInfo{codecID: fourcc, channels: channels, sampleRate: sampleRate, bitsPerSample: bitsPerSample}

	const audioSampleEntryFixedLen = 8 + 20
	if len(entry) > audioSampleEntryFixedLen {
		boxes := entry[audioSampleEntryFixedLen:]
		esds, ok, err := findChild(boxes, "esds")
		if err != nil {
			return nil, err
		}
		if ok {
			extra, err := readEsdsExtraData(esds)
			if err != nil {
				return nil, err
			}
			info.extraData = extra
		}
	}
	return info, nil
}

// firstStsdEntry returns the body of the first sample entry in an stsd
// atom (with the 8-byte size+format prefix stripped from the returned
// slice's accounting, but retained so offsets below match the published
// box layouts) along with its 4-character format fourcc.
func firstStsdEntry(body []byte) (entry []byte, fourcc string, err error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, "", err
	}
	if len(rest) < 4 {
		return nil, "", model.NewError(model.BadData, "parser.firstStsdEntry", model.ErrAtomTooSmall)
	}
	// entry_count(4) ignored; only the first entry is consulted.
	rest = rest[4:]
	if len(rest) < 8 {
		return nil, "", model.NewError(model.BadData, "parser.firstStsdEntry", model.ErrAtomTooSmall)
	}
	size := binary.BigEndian.Uint32(rest[0:4])
	format := string(rest[4:8])
	if uint64(size) > uint64(len(rest)) || size < 8 {
		return nil, "", model.NewError(model.BadData, "parser.firstStsdEntry", model.ErrAtomOverflow)
	}
	// entry, counted from byte 8 of the entry (reserved+data_reference_index
	// onward), mirrors the "8 common bytes already consumed" offsets used
	// by parseStsdVideo/parseStsdAudio above.
	return rest[8:size], format, nil
}

// readEsdsExtraData walks an esds full box's ES_Descriptor ->
// DecoderConfigDescriptor -> DecoderSpecificInfo chain and returns the
// DecoderSpecificInfo payload verbatim, matching the three-tag walk in the
// source's esds reader.
func readEsdsExtraData(body []byte) ([]byte, error) {
	_, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}

	tag, payload, _, err := readDescriptor(rest)
	if err != nil {
		return nil, err
	}
	if tag != mp4ESDescrTag {
		return nil, nil
	}
	// ES_ID(2) + flags(1)
	if len(payload) < 3 {
		return nil, model.NewError(model.BadData, "parser.readEsdsExtraData", model.ErrAtomTooSmall)
	}
	flags := payload[2]
	pos := 3
	if flags&0x80 != 0 { // streamDependenceFlag
		pos += 2
	}
	if flags&0x40 != 0 { // URL_Flag
		if pos >= len(payload) {
			return nil, model.NewError(model.BadData, "parser.readEsdsExtraData", model.ErrAtomTooSmall)
		}
		urlLen := int(payload[pos])
		pos += 1 + urlLen
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		pos += 2
	}
	if pos > len(payload) {
		return nil, model.NewError(model.BadData, "parser.readEsdsExtraData", model.ErrAtomOverflow)
	}

	tag, payload, _, err = readDescriptor(payload[pos:])
	if err != nil {
		return nil, err
	}
	if tag != mp4DecConfigDescrTag {
		return nil, nil
	}
	// objectTypeIndication(1) + streamType/flags(1) + bufferSizeDB(3) +
	// maxBitrate(4) + avgBitrate(4) = 13 bytes before the optional
	// DecoderSpecificInfo.
	if len(payload) <= 13 {
		return nil, nil
	}
	tag, payload, _, err = readDescriptor(payload[13:])
	if err != nil {
		return nil, err
	}
	if tag != mp4DecSpecificDescrTag {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

// readDescriptor reads one MPEG-4 descriptor's tag byte, its variable-length
// size (up to 4 continuation bytes, 7 data bits each, high bit signals
// another byte follows), and returns the descriptor's payload slice plus
// the offset immediately following it within data.
func readDescriptor(data []byte) (tag byte, payload []byte, next int, err error) {
	if len(data) < 2 {
		return 0, nil, 0, model.NewError(model.BadData, "parser.readDescriptor", model.ErrAtomTooSmall)
	}
	tag = data[0]
	pos := 1
	var size uint32
	for i := 0; i < 4; i++ {
		if pos >= len(data) {
			return 0, nil, 0, model.NewError(model.BadData, "parser.readDescriptor", model.ErrAtomTooSmall)
		}
		b := data[pos]
		pos++
		size = (size << 7) | uint32(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	if uint64(pos)+uint64(size) > uint64(len(data)) {
		return 0, nil, 0, model.NewError(model.BadData, "parser.readDescriptor", model.ErrAtomOverflow)
	}
	return tag, data[pos : pos+int(size)], pos + int(size), nil
}
