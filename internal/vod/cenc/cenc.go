package cenc

import (
	"crypto/aes"
	"log/slog"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// FrameBytesFunc fetches one frame's plaintext bytes for encryption. It
// returns model.Again (via frameio.ReadCache.Fetch) when the bytes have not
// arrived yet; EncryptTrack propagates that unchanged so the caller can
// suspend and retry the whole track encryption pass later.
type FrameBytesFunc func(frameIndex int) ([]byte, error)

// EncryptTrack encrypts every frame of track with AES-CTR, deriving each
// frame's IV from the fragment's provisioned key/IV and the track's
// position within the overall sequence (spec §4.3). It returns the
// ciphertext for each frame, in Frames order, plus the CencState that
// BuildSaiz, BuildSaio and BuildAuxiliaryData serialise; the HDS muxer does
// not embed it in the fragment.
//
// Audio frames are encrypted whole; video frames are walked NAL unit by
// NAL unit so only each NAL's payload (not its length prefix or type byte)
// is encrypted, per encryptVideoFrame.
//
// logger receives structural-violation logs per spec §7; a nil logger
// defaults to slog.Default().
func EncryptTrack(track *model.Track, params model.EncryptionParams, clipSequenceOffset uint64, frameBytes FrameBytesFunc, logger *slog.Logger) ([][]byte, *model.CencState, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if track.MediaType == model.Video && (track.NALPacketSizeLength < model.NALPacketSizeLengthMin || track.NALPacketSizeLength > model.NALPacketSizeLengthMax) {
		err := model.NewError(model.BadData, "cenc.EncryptTrack", model.ErrUnsupportedFieldSize)
		model.LogError(logger, "cenc.EncryptTrack", err)
		return nil, nil, err
	}

	block, err := aes.NewCipher(params.Key[:])
	if err != nil {
		wrapped := model.NewError(model.Unexpected, "cenc.EncryptTrack", err)
		model.LogError(logger, "cenc.EncryptTrack", wrapped)
		return nil, nil, wrapped
	}

	iv := DeriveInitialIV(params.IV, uint64(track.FirstFrameIndex), clipSequenceOffset, track.Timescale)

	state := &model.CencState{
		BaseIV:             params.IV,
		FirstFrameIndex:    uint64(track.FirstFrameIndex),
		ClipSequenceOffset: clipSequenceOffset,
		Timescale:          track.Timescale,
		Entries:            make([]model.AuxEntry, 0, len(track.Frames)),
	}

	ciphertexts := make([][]byte, len(track.Frames))
	for i := range track.Frames {
		plain, err := frameBytes(i)
		if err != nil {
			model.LogError(logger, "cenc.EncryptTrack", err)
			return nil, nil, err
		}

		frameIV := iv
		incrementIV(&iv)

		var out []byte
		var aux model.AuxEntry
		if track.MediaType == model.Video {
			out, aux, err = encryptVideoFrame(block, frameIV, plain, track.NALPacketSizeLength)
			if err != nil {
				model.LogError(logger, "cenc.EncryptTrack", err)
				return nil, nil, err
			}
		} else {
			out, aux = encryptAudioFrame(block, frameIV, plain)
		}

		ciphertexts[i] = out
		state.Entries = append(state.Entries, aux)
	}

	return ciphertexts, state, nil
}
