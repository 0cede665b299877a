package parser

import (
	"log/slog"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// Options controls which part of the asset Parse extracts.
type Options struct {
	// StartMS/EndMS bound the requested clip window in milliseconds.
	// EndMS == 0 means "to the end of the track".
	StartMS int64
	EndMS   int64

	// TrackMask selects which tracks of each media type to parse, by
	// encounter order within the moov box: bit i set means "parse the
	// i-th track of this media type". A nil or absent entry for a media
	// type means "parse every track of that type" (spec §4.1 step 1).
	TrackMask map[model.MediaType]uint64

	// Logger receives structural (BadData/BadRequest) violation and
	// allocation-failure logs per spec §7. A nil Logger defaults to
	// slog.Default(), matching the teacher's NewFMP4Demuxer treatment of a
	// nil config.Logger.
	Logger *slog.Logger
}

func (o Options) wantsTrack(mt model.MediaType, ordinal int) bool {
	mask, ok := o.TrackMask[mt]
	if !ok {
		return true
	}
	if ordinal >= 64 {
		return false
	}
	return mask&(1<<uint(ordinal)) != 0
}

// Parse decodes the moov box of an ISOBMFF asset into a MediaSet containing
// a single Sequence with a single Clip holding every requested track, each
// windowed to [StartMS, EndMS) and normalised to the 90 kHz output
// timescale (spec §4.1).
func Parse(data []byte, opts Options) (*model.MediaSet, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mediaSet, err := parse(data, opts)
	if err != nil {
		model.LogError(logger, "parser.Parse", err)
	}
	return mediaSet, err
}

// parse does the actual work; Parse wraps it so every return path is
// logged through a single site instead of at each of the many atom
// readers that can fail.
func parse(data []byte, opts Options) (*model.MediaSet, error) {
	moov, ok, err := findChild(data, "moov")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewError(model.BadData, "parser.Parse", model.ErrNoFramesInSequence)
	}

	var trakBodies [][]byte
	err = walkBoxes(moov, func(a atom) error {
		if a.name.String() == "trak" {
			trakBodies = append(trakBodies, a.body)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ordinals := map[model.MediaType]int{}
	clip := &model.Clip{}

	for _, trak := range trakBodies {
		info, err := collectTrakAtoms(trak)
		if err != nil {
			return nil, err
		}
		if info.hdlr == nil {
			continue
		}
		mt, err := classifyHandler(info.hdlr)
		if err != nil {
			// Not a video/audio track (e.g. text, metadata): skip silently.
			continue
		}

		ordinal := ordinals[mt]
		ordinals[mt] = ordinal + 1
		if !opts.wantsTrack(mt, ordinal) {
			continue
		}

		track, err := parseTrack(mt, info, opts)
		if err != nil {
			return nil, err
		}
		clip.Tracks = append(clip.Tracks, track)
	}

	mediaSet := &model.MediaSet{
		Kind: model.VOD,
		Sequences: []*model.Sequence{
			{Clips: []*model.Clip{clip}},
		},
	}
	if err := mediaSet.Validate(); err != nil {
		return nil, err
	}
	return mediaSet, nil
}

// parseTrack runs the full per-atom resolution pipeline for one trak box,
// in the exact order spec §4.1 specifies: stts window -> ctts offsets ->
// stsc chunk assignment -> stsz/stz2 sizes -> stco/co64 offsets -> stss
// keyframes -> stsd codec metadata -> Normalize.
func parseTrack(mt model.MediaType, info *trakAtomInfos, opts Options) (*model.Track, error) {
	if info.mdhd == nil {
		return nil, model.NewError(model.BadData, "parser.parseTrack", model.ErrZeroTimescale)
	}
	mdhd, err := readMdhd(info.mdhd)
	if err != nil {
		return nil, err
	}

	startTicks := uint64(model.RoundDiv(opts.StartMS, int64(mdhd.timescale), 1000))
	var endTicks uint64
	if opts.EndMS > 0 {
		endTicks = uint64(model.RoundDiv(opts.EndMS, int64(mdhd.timescale), 1000))
	}

	if info.stts == nil {
		return nil, model.NewError(model.BadData, "parser.parseTrack", model.ErrNoFramesInWindow)
	}
	sttsEntries, err := readSttsEntries(info.stts)
	if err != nil {
		return nil, err
	}
	frames, firstFrame, globalLast, err := buildFrameWindow(sttsEntries, startTicks, endTicks)
	if err != nil {
		return nil, err
	}

	if info.ctts != nil {
		cttsEntries, err := readCttsEntries(info.ctts)
		if err != nil {
			return nil, err
		}
		applyCtts(cttsEntries, frames, firstFrame, globalLast)
	}

	if info.stsc == nil || info.stsz == nil || info.stco == nil {
		return nil, model.NewError(model.BadData, "parser.parseTrack", model.ErrAtomTooSmall)
	}
	stscEntries, err := readStscEntries(info.stsc)
	if err != nil {
		return nil, err
	}
	sizes, err := resolveStsz(info.stsz, info.stz2, globalLast)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		frames[i].Size = sizes.sizes[firstFrame+i]
	}

	chunkOffsets, err := readStcoEntries(info.stco, info.co64)
	if err != nil {
		return nil, err
	}

	if isChunkEqualsSample(stscEntries) {
		if err := resolveOffsetsShortCircuit(chunkOffsets, frames, firstFrame); err != nil {
			return nil, err
		}
	} else {
		ca, err := assignChunks(stscEntries, globalLast)
		if err != nil {
			return nil, err
		}
		if err := resolveOffsetsGeneral(chunkOffsets, ca, sizes, frames, firstFrame); err != nil {
			return nil, err
		}
	}

	if info.stss != nil {
		if err := applyStss(info.stss, frames, firstFrame, globalLast); err != nil {
			return nil, err
		}
	}

	if err := validateFrameSizes(frames); err != nil {
		return nil, err
	}

	track := &model.Track{
		MediaType:       mt,
		Timescale:       mdhd.timescale,
		Duration:        mdhd.duration,
		Language:        mdhd.language,
		Frames:          frames,
		FirstFrameIndex: firstFrame,
	}

	if info.stsd == nil {
		return nil, model.NewError(model.BadData, "parser.parseTrack", model.ErrAtomTooSmall)
	}
	switch mt {
	case model.Video:
		v, err := parseStsdVideo(info.stsd)
		if err != nil {
			return nil, err
		}
		track.CodecID = v.codecID
		track.Width = v.width
		track.Height = v.height
		track.ExtraData = v.extraData
		track.NALPacketSizeLength = v.nalPacketSizeLength
	case model.Audio:
		a, err := parseStsdAudio(info.stsd)
		if err != nil {
			return nil, err
		}
		track.CodecID = a.codecID
		track.Channels = a.channels
		track.SampleRate = a.sampleRate
		track.BitsPerSample = a.bitsPerSample
		track.ExtraData = a.extraData
	}

	track.Normalize()
	return track, nil
}
