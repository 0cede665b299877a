package parser

import (
	"encoding/binary"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"golang.org/x/text/language"
)

// mdhdInfo is the subset of an mdhd full box the parser needs: the track's
// timescale/duration and its packed language code.
type mdhdInfo struct {
	timescale uint32
	duration  uint64
	language  string
}

// readMdhd decodes version 0 and version 1 mdhd layouts (the only
// difference being whether creation/modification time and duration are
// 32-bit or 64-bit) and decodes the packed 5-bit-per-character ISO-639-2/T
// language code into a BCP-47 tag via golang.org/x/text/language, yielding
// "und" when the packed value isn't a language golang.org/x/text
// recognises.
func readMdhd(body []byte) (*mdhdInfo, error) {
	version, rest, err := fullAtomHeader(body)
	if err != nil {
		return nil, err
	}

	var timescale uint32
	var duration uint64
	var langOff int

	if version == 1 {
		// creation_time(8) modification_time(8) timescale(4) duration(8)
		if len(rest) < 28 {
			return nil, model.NewError(model.BadData, "parser.readMdhd", model.ErrAtomTooSmall)
		}
		timescale = binary.BigEndian.Uint32(rest[16:20])
		duration = binary.BigEndian.Uint64(rest[20:28])
		langOff = 28
	} else {
		// creation_time(4) modification_time(4) timescale(4) duration(4)
		if len(rest) < 16 {
			return nil, model.NewError(model.BadData, "parser.readMdhd", model.ErrAtomTooSmall)
		}
		timescale = binary.BigEndian.Uint32(rest[8:12])
		duration = uint64(binary.BigEndian.Uint32(rest[12:16]))
		langOff = 16
	}
	if timescale == 0 {
		return nil, model.NewError(model.BadData, "parser.readMdhd", model.ErrZeroTimescale)
	}
	if len(rest) < langOff+2 {
		return nil, model.NewError(model.BadData, "parser.readMdhd", model.ErrAtomTooSmall)
	}
	packed := binary.BigEndian.Uint16(rest[langOff : langOff+2])

	return &mdhdInfo{
		timescale: timescale,
		duration:  duration,
		language:  decodePackedLanguage(packed),
	}, nil
}

// decodePackedLanguage unpacks mdhd's 1+5+5+5 bit language field (bit 15
// always 0, three 5-bit values each biased by 0x60, forming an ISO-639-2/T
// code such as "eng") and normalises it to a BCP-47 tag. An all-zero or
// unrecognised code yields "und", matching language.Und.String().
func decodePackedLanguage(packed uint16) string {
	c1 := byte((packed>>10)&0x1f) + 0x60
	c2 := byte((packed>>5)&0x1f) + 0x60
	c3 := byte(packed&0x1f) + 0x60
	raw := string([]byte{c1, c2, c3})

	tag, err := language.ParseBase(raw)
	if err != nil {
		return language.Und.String()
	}
	base, _ := language.Compose(tag).Base()
	return base.String()
}
