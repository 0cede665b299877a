// Package model holds the frame table and media-set data structures shared
// by the parser, the HDS/CENC muxers and the frame I/O pipeline. Everything
// here is plain data: no box parsing, no byte layout, no I/O. Frames live in
// flat per-track slices and are referenced by index rather than pointer, so
// that the Again-then-resume suspension boundary (see internal/vod/frameio)
// never has to reason about aliasing.
package model

import "github.com/google/uuid"

// MediaType distinguishes video and audio tracks. Text/subtitle tracks are
// out of scope (spec Non-goals: subtitle muxing).
type MediaType int

const (
	Video MediaType = iota
	Audio
)

func (t MediaType) String() string {
	if t == Video {
		return "video"
	}
	return "audio"
}

// PresentationKind distinguishes VOD from Live. Only VOD is implemented;
// Live is retained as a named value because MediaSet.Kind is part of the
// contract other (out of core scope) components inspect.
type PresentationKind int

const (
	VOD PresentationKind = iota
	Live
)

const (
	// MaxFrameSize rejects stsz/stz2 sample sizes above 10 MiB as BadData.
	MaxFrameSize = 10 * 1024 * 1024

	// MaxFrameRate is the fleet-wide constant used to compensate the CENC
	// IV for frames contributed by earlier, unparsed clips. Treated as a
	// documented constant of the spec (see spec.md Open Questions).
	MaxFrameRate = 60

	// HDSTimescale is the fixed 1 kHz timescale HDS interleaving and the
	// abst bootstrap box are expressed in.
	HDSTimescale = 1000

	// NormalizedTimescale is the 90 kHz timescale every frame's PTS/DTS is
	// rebased to once the parser finalises a track (spec §4.1
	// Normalisation).
	NormalizedTimescale = 90000

	// NALPacketSizeLengthMin/Max bound Track.NALPacketSizeLength.
	NALPacketSizeLengthMin = 1
	NALPacketSizeLengthMax = 4
)

// Frame is the universal unit of work. It is immutable once the parser
// finalises it (i.e. once Normalize has rebased PTS/DTS to the 90 kHz
// output timescale).
type Frame struct {
	// Offset is the absolute byte offset of the frame's data into the
	// source file.
	Offset int64
	// Size is the frame's size in bytes, as read from stsz/stz2.
	Size uint32
	// Duration is the frame's duration in the track's timescale (stts),
	// before Normalize rescales everything derived from it to 90 kHz.
	Duration uint32
	// PTS is the composition time: accumulated stts duration plus any
	// ctts offset, plus the track-wide dts_shift. In the track's
	// timescale until Normalize runs, then 90 kHz.
	PTS int64
	// DTS is the decode time: accumulated stts duration, before any ctts
	// offset is added. In the track's timescale until Normalize runs,
	// then 90 kHz.
	DTS int64
	// PTSDelay is the signed composition-to-decode offset in the track's
	// timescale (the raw ctts value before dts_shift is folded into PTS).
	PTSDelay int32
	// KeyFrame is true for frames listed in stss, or for every frame when
	// stss is absent.
	KeyFrame bool
}

// Track is a sequence of frames for one media stream plus its codec and
// geometry metadata. Tracks are owned by a Sequence and live for the
// duration of one request.
type Track struct {
	MediaType MediaType
	Timescale uint32
	Duration  uint64

	// CodecID is the stsd sample-entry fourcc, e.g. "avc1" or "mp4a".
	CodecID string
	// ExtraData is the decoder config blob replayed verbatim: the AVC
	// decoder configuration record (avcC) or the AAC AudioSpecificConfig
	// (the DecSpecificInfo bytes out of esds).
	ExtraData []byte

	// Video geometry. Zero for audio tracks.
	Width               uint32
	Height              uint32
	NALPacketSizeLength uint8

	// Audio shape. Zero for video tracks.
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16

	// Language is the mdhd packed ISO-639-2/T code, decoded to a BCP-47
	// tag via golang.org/x/text/language where recognised.
	Language string

	Frames []Frame

	// FirstFrameIndex is the index, within Frames, of the first frame
	// inside the requested clip window — kept distinct from "index 0"
	// because a clip window can start partway through the track.
	FirstFrameIndex int
}

// Clip groups the tracks that share one clip_sequence_offset within a
// Sequence — normally one clip per distinct source file concatenated into a
// Sequence's timeline.
type Clip struct {
	SequenceOffset uint64
	Tracks         []*Track
}

// LongestTrack returns the clip's track with the most frames for the given
// media type, or nil if the clip carries no track of that type. Muxers use
// this to pick the pacing track for interleaving.
func (c *Clip) LongestTrack(mt MediaType) *Track {
	var longest *Track
	for _, tr := range c.Tracks {
		if tr.MediaType != mt {
			continue
		}
		if longest == nil || len(tr.Frames) > len(longest.Frames) {
			longest = tr
		}
	}
	return longest
}

// Sequence is one adaptation variant: an ordered list of clips presented as
// a single continuous timeline.
type Sequence struct {
	Clips []*Clip
}

// Tracks flattens every track across every clip in the sequence, in clip
// order.
func (s *Sequence) Tracks() []*Track {
	var out []*Track
	for _, c := range s.Clips {
		out = append(out, c.Tracks...)
	}
	return out
}

// MediaSet is the parser's output: every sequence requested for one
// request, plus the presentation kind.
type MediaSet struct {
	Kind      PresentationKind
	Sequences []*Sequence
}

// Validate checks the MediaSet invariants from spec §3: at least one track
// per sequence, and non-empty clips.
func (m *MediaSet) Validate() error {
	for _, seq := range m.Sequences {
		if len(seq.Clips) == 0 {
			return NewError(BadData, "MediaSet.Validate", ErrNoFramesInSequence)
		}
		any := false
		for _, c := range seq.Clips {
			if len(c.Tracks) > 0 {
				any = true
			}
		}
		if !any {
			return NewError(BadData, "MediaSet.Validate", ErrNoFramesInSequence)
		}
	}
	return nil
}

// RoundDiv rounds val*num/den to the nearest integer, matching the source's
// round_div(val, 90000, timescale) normalisation helper (round, not
// truncate, so PTS/DTS rebasing doesn't drift over long tracks).
func RoundDiv(val int64, num, den int64) int64 {
	if den == 0 {
		return 0
	}
	n := val * num
	if (n < 0) != (den < 0) {
		return (n - den/2) / den
	}
	return (n + den/2) / den
}

// Normalize rebases every frame's PTS/DTS from the track's timescale to the
// global 90 kHz output timescale (spec §4.1 Normalisation). It is called
// once, after dts_shift (the maximum negative ctts offset) has already been
// folded into each frame's PTS by the ctts parsing step.
func (t *Track) Normalize() {
	if t.Timescale == 0 {
		return
	}
	for i := range t.Frames {
		f := &t.Frames[i]
		f.PTS = RoundDiv(f.PTS, NormalizedTimescale, int64(t.Timescale))
		f.DTS = RoundDiv(f.DTS, NormalizedTimescale, int64(t.Timescale))
	}
}

// FragmentHeader describes one output segment before any body byte is
// materialised. The sum of the three advertised sizes must equal the final
// emitted byte count exactly (spec §3 invariant, tested as property P1).
type FragmentHeader struct {
	AfraAtomSize    uint32
	MoofAtomSize    uint32
	MdatAtomSize    uint32
	CodecConfigSize uint32

	// FrameOutputOffsets[i] is the absolute byte offset, within the final
	// fragment (header included), of frame i's tag header. hds.BuildFragment
	// does not fill this struct; it records offsets in hds.FrameRef.
	FrameOutputOffsets []uint32
}

// TotalSize returns the full byte count the header advertises.
func (h *FragmentHeader) TotalSize() uint32 {
	return h.AfraAtomSize + h.MoofAtomSize + h.MdatAtomSize
}

// AfraEntry is one video-keyframe entry in the afra box: the HDS-timescale
// presentation time and the absolute byte offset of the keyframe's tag.
type AfraEntry struct {
	PTS    uint64
	Offset uint64
}

// AuxSubsample is one (clear, encrypted) byte-count pair within a CENC
// frame's auxiliary data. Each NAL unit contributes exactly one subsample.
type AuxSubsample struct {
	BytesClear     uint16
	BytesEncrypted uint32
}

// AuxEntry is one frame's row of CENC auxiliary data: its IV plus the
// ordered list of subsamples (empty for audio, which encrypts whole-frame
// with no subsample accounting).
type AuxEntry struct {
	IV         [16]byte
	Subsamples []AuxSubsample
}

// SampleAuxSize returns this entry's saiz sample-size row: 16 (IV) + 2
// (subsample count) + 6 bytes per subsample. Audio entries (no subsamples)
// still carry the fixed 16-byte IV-only row.
func (e *AuxEntry) SampleAuxSize() uint32 {
	if len(e.Subsamples) == 0 {
		return 16
	}
	return uint32(16 + 2 + 6*len(e.Subsamples))
}

// EncryptionParams is the prepared {key, iv, kid, pssh} struct the DRM key
// provisioning service (an external collaborator, spec §1) hands to the
// core. The core never derives or fetches these itself.
//
// KID is a uuid.UUID rather than a bare [16]byte: CENC key IDs and PSSH
// system IDs are both UUIDs on the wire (ISO/IEC 23001-7 §8.2), and
// google/uuid.UUID is itself defined as [16]byte, so this costs nothing
// over the raw array while giving callers String()/Parse() for free, the
// same trade the pack's go-webdl-smoothstreaming makes for
// ProtectionHeader.SystemID.
type EncryptionParams struct {
	Key  [16]byte
	IV   [16]byte
	KID  uuid.UUID
	PSSH []byte
}

// CencState is the per-fragment encryption bookkeeping described in spec
// §3: the starting IV and the accumulated per-frame auxiliary data.
type CencState struct {
	BaseIV [16]byte
	// FirstFrameIndex and ClipSequenceOffset feed the starting-IV formula
	// in internal/vod/cenc.
	FirstFrameIndex    uint64
	ClipSequenceOffset uint64
	Timescale          uint32

	Entries []AuxEntry
}
