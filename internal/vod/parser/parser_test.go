package parser

import (
	"encoding/binary"
	"testing"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(fourcc string, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], fourcc)
	copy(out[8:], body)
	return out
}

func fullBoxBody(flags []byte, rest []byte) []byte {
	out := make([]byte, 4+len(rest))
	copy(out[0:4], flags)
	copy(out[4:], rest)
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func buildMinimalVideoTrak(t *testing.T) []byte {
	t.Helper()

	// mdhd v0: flags(4) ct(4) mt(4) timescale(4) duration(4) lang(2) pre_defined(2)
	mdhdRest := append(append(u32(0), u32(0)...), u32(1000)...)
	mdhdRest = append(mdhdRest, u32(3000)...)
	mdhdRest = append(mdhdRest, 0x55, 0xc4) // "und" packed
	mdhdRest = append(mdhdRest, 0, 0)
	mdhd := box("mdhd", fullBoxBody([]byte{0, 0, 0, 0}, mdhdRest))

	hdlrRest := append(u32(0), []byte("vide")...)
	hdlrRest = append(hdlrRest, make([]byte, 12)...)
	hdlr := box("hdlr", fullBoxBody([]byte{0, 0, 0, 0}, hdlrRest))

	// stts: one entry, 3 samples of duration 1000 each.
	sttsEntries := append(u32(1), append(u32(3), u32(1000)...)...)
	stts := box("stts", fullBoxBody([]byte{0, 0, 0, 0}, append(u32(1), sttsEntries[4:]...)))

	// stsc: single entry {1,1,1} -> chunk == sample short circuit.
	stscBody := append(u32(1), append(u32(1), append(u32(1), u32(1)...)...)...)
	stsc := box("stsc", fullBoxBody([]byte{0, 0, 0, 0}, stscBody))

	// stsz: uniform size 0 (variable), count 3, then 3 explicit sizes.
	stszBody := append(u32(0), u32(3)...)
	stszBody = append(stszBody, u32(100)...)
	stszBody = append(stszBody, u32(200)...)
	stszBody = append(stszBody, u32(150)...)
	stsz := box("stsz", fullBoxBody([]byte{0, 0, 0, 0}, stszBody))

	// stco: 3 chunk offsets, one per sample (chunk==sample case).
	stcoBody := append(u32(3), u32(1000)...)
	stcoBody = append(stcoBody, u32(1100)...)
	stcoBody = append(stcoBody, u32(1300)...)
	stco := box("stco", fullBoxBody([]byte{0, 0, 0, 0}, stcoBody))

	// stsd: single avc1 entry with no avcC box (extra data optional in this test).
	entryBody := make([]byte, 8+78)
	binary.BigEndian.PutUint16(entryBody[8+16:8+18], 1920)
	binary.BigEndian.PutUint16(entryBody[8+18:8+20], 1080)
	entry := make([]byte, 8+len(entryBody))
	binary.BigEndian.PutUint32(entry[0:4], uint32(len(entry)))
	copy(entry[4:8], "avc1")
	copy(entry[8:], entryBody)
	stsdBody := append(u32(1), entry...)
	stsd := box("stsd", fullBoxBody([]byte{0, 0, 0, 0}, stsdBody))

	stbl := box("stbl", append(append(append(append(stsd, stts...), stsc...), stsz...), stco...))
	minf := box("minf", stbl)
	mdia := box("mdia", append(append(hdlr, mdhd...), minf...))
	return box("trak", mdia)
}

func TestParseMinimalVideoTrack(t *testing.T) {
	trak := buildMinimalVideoTrak(t)
	moov := box("moov", trak)

	ms, err := Parse(moov, Options{})
	require.NoError(t, err)
	require.Len(t, ms.Sequences, 1)
	require.Len(t, ms.Sequences[0].Clips, 1)
	require.Len(t, ms.Sequences[0].Clips[0].Tracks, 1)

	tr := ms.Sequences[0].Clips[0].Tracks[0]
	assert.Equal(t, model.Video, tr.MediaType)
	assert.Equal(t, uint32(1920), tr.Width)
	assert.Equal(t, uint32(1080), tr.Height)
	require.Len(t, tr.Frames, 3)
	assert.Equal(t, uint32(100), tr.Frames[0].Size)
	assert.Equal(t, uint32(200), tr.Frames[1].Size)
	assert.Equal(t, uint32(150), tr.Frames[2].Size)
	assert.Equal(t, int64(1000), tr.Frames[0].Offset)
	assert.Equal(t, int64(1100), tr.Frames[1].Offset)
	assert.Equal(t, int64(1300), tr.Frames[2].Offset)
	// Every frame defaults to a keyframe when stss is absent.
	assert.True(t, tr.Frames[0].KeyFrame)
	assert.True(t, tr.Frames[2].KeyFrame)
}

func TestParseMissingMoov(t *testing.T) {
	_, err := Parse(box("ftyp", []byte("isom")), Options{})
	require.Error(t, err)
	assert.True(t, model.NewError(model.BadData, "", model.ErrNoFramesInSequence).Is(err))
}

func TestBuildFrameWindowSkipsLeadingEntries(t *testing.T) {
	entries := []sttsEntry{{count: 2, duration: 1000}, {count: 3, duration: 1000}}
	frames, first, last, err := buildFrameWindow(entries, 2000, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 5, last)
	assert.Len(t, frames, 3)
	assert.Equal(t, int64(2000), frames[0].PTS)
}

func TestBuildFrameWindowStopsAtEnd(t *testing.T) {
	entries := []sttsEntry{{count: 5, duration: 1000}}
	frames, first, last, err := buildFrameWindow(entries, 0, 3000)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 3, last)
	assert.Len(t, frames, 3)
}

func TestBuildFrameWindowZeroDurationIsError(t *testing.T) {
	entries := []sttsEntry{{count: 2, duration: 0}}
	_, _, _, err := buildFrameWindow(entries, 0, 0)
	require.Error(t, err)
}

func TestApplyCttsAppliesDtsShift(t *testing.T) {
	entries := []cttsEntry{{count: 3, offset: -500}}
	frames := []model.Frame{{PTS: 0}, {PTS: 1000}, {PTS: 2000}}
	applyCtts(entries, frames, 0, 3)
	assert.Equal(t, int64(0), frames[0].PTS)
	assert.Equal(t, int64(1000), frames[1].PTS)
	assert.Equal(t, int64(2000), frames[2].PTS)
	assert.Equal(t, int32(-500), frames[0].PTSDelay)
}

func TestIsChunkEqualsSample(t *testing.T) {
	assert.True(t, isChunkEqualsSample([]stscEntry{{firstChunk: 1, samplesPerChunk: 1, descIndex: 1}}))
	assert.False(t, isChunkEqualsSample([]stscEntry{{firstChunk: 1, samplesPerChunk: 2, descIndex: 1}}))
	assert.False(t, isChunkEqualsSample([]stscEntry{{firstChunk: 1, samplesPerChunk: 1, descIndex: 1}, {firstChunk: 2, samplesPerChunk: 1, descIndex: 1}}))
}

func TestAssignChunksMultiSamplePerChunk(t *testing.T) {
	entries := []stscEntry{{firstChunk: 1, samplesPerChunk: 2, descIndex: 1}}
	ca, err := assignChunks(entries, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 1, 2, 2, 3}, ca.chunkOf)
	assert.Equal(t, []uint32{0, 1, 0, 1, 0}, ca.samplesBeforeIn)
}

func TestResolveStszUniform(t *testing.T) {
	body := fullBoxBody([]byte{0, 0, 0, 0}, append(u32(512), u32(4)...))
	sizes, err := resolveStsz(box("stsz", body)[8:], false, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{512, 512, 512, 512}, sizes.sizes)
}

func TestResolveStszRejectsUnsupportedFieldSize(t *testing.T) {
	rest := append([]byte{0, 0, 0, 4}, u32(2)...)
	body := fullBoxBody([]byte{0, 0, 0, 0}, rest)
	_, err := resolveStsz(box("stz2", body)[8:], true, 2)
	require.Error(t, err)
}
