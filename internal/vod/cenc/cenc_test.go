package cenc

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveInitialIVAddsFirstFrameIndex(t *testing.T) {
	var base [16]byte
	base[7] = 10 // ivInt = 10

	iv := DeriveInitialIV(base, 5, 0, 1000)
	var out [16]byte
	out[7] = 15
	assert.Equal(t, out, iv)
}

func TestDeriveInitialIVAppliesClipSequenceOffset(t *testing.T) {
	var base [16]byte
	iv := DeriveInitialIV(base, 0, 120, 60)
	// (120 * 60) / 60 = 120
	var want [16]byte
	want[6] = 0
	want[7] = 120
	assert.Equal(t, want, iv)
}

func TestIncrementIVWraps(t *testing.T) {
	iv := [16]byte{}
	for i := 0; i < 8; i++ {
		iv[i] = 0xff
	}
	incrementIV(&iv)
	var want [16]byte
	assert.Equal(t, want, iv)
}

func TestEncryptVideoFrameLeavesLengthAndTypeClear(t *testing.T) {
	var key [16]byte
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)

	// Two NAL units: [size=3][type][2 payload bytes], [size=2][type][1 payload byte].
	plain := []byte{0, 0, 3, 0x65, 0xAA, 0xBB, 0, 0, 2, 0x41, 0xCC}
	var iv [16]byte
	out, aux, err := encryptVideoFrame(block, iv, plain, 3)
	require.NoError(t, err)

	assert.Equal(t, plain[0:4], out[0:4], "length prefix and nal type stay clear")
	assert.Equal(t, plain[6:10], out[6:10], "second nal's length prefix and type stay clear")
	require.Len(t, aux.Subsamples, 2)
	assert.Equal(t, uint16(4), aux.Subsamples[0].BytesClear)
	assert.Equal(t, uint32(2), aux.Subsamples[0].BytesEncrypted)
	assert.Equal(t, uint16(4), aux.Subsamples[1].BytesClear)
	assert.Equal(t, uint32(1), aux.Subsamples[1].BytesEncrypted)

	stream := cipher.NewCTR(block, iv[:])
	want := make([]byte, len(plain))
	copy(want, plain)
	stream.XORKeyStream(want[4:6], plain[4:6])
	assert.Equal(t, want[4:6], out[4:6])
}

func TestEncryptTrackProducesOneAuxEntryPerFrame(t *testing.T) {
	track := &model.Track{
		MediaType:           model.Video,
		Timescale:           1000,
		NALPacketSizeLength: 1,
		Frames: []model.Frame{
			{Size: 4}, {Size: 4},
		},
	}
	frames := [][]byte{
		{3, 0x65, 0xAA, 0xBB},
		{3, 0x41, 0xCC, 0xDD},
	}

	var params model.EncryptionParams
	ciphertexts, state, err := EncryptTrack(track, params, 0, func(i int) ([]byte, error) {
		return frames[i], nil
	}, nil)
	require.NoError(t, err)
	require.Len(t, ciphertexts, 2)
	require.Len(t, state.Entries, 2)
	assert.NotEqual(t, state.Entries[0].IV, state.Entries[1].IV)
}

func TestBuildSaizUsesDefaultSizeWhenUniform(t *testing.T) {
	entries := []model.AuxEntry{{}, {}}
	saiz := BuildSaiz(entries)
	assert.Equal(t, uint8(16), saiz[12])
}

func TestBuildAuxiliaryDataAudioRowHasNoSubsampleCount(t *testing.T) {
	entries := []model.AuxEntry{{}}
	data := BuildAuxiliaryData(entries)
	assert.Len(t, data, 16)
}
