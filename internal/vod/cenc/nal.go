package cenc

import (
	"crypto/cipher"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// encryptAudioFrame encrypts an entire audio frame as one opaque blob: CENC
// audio samples carry no subsample structure, only the per-sample IV (spec
// §4.3, matching the source's mp4_encrypt_audio_* path, which has no
// subsample bookkeeping at all unlike its video counterpart).
func encryptAudioFrame(block cipher.Block, iv [16]byte, plain []byte) ([]byte, model.AuxEntry) {
	out := make([]byte, len(plain))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, plain)
	return out, model.AuxEntry{IV: iv}
}

// encryptVideoFrame walks a frame's length-prefixed NAL units (nalLen bytes
// of big-endian size, then the NAL payload) and encrypts each unit's
// payload while leaving its size field and one-byte NAL header in the
// clear, exactly matching mp4_encrypt_video_write_buffer's
// STATE_PACKET_SIZE -> STATE_NAL_TYPE -> STATE_PACKET_DATA walk: the clear
// portion of every subsample is nalLen+1 bytes (length field plus the NAL
// type byte) and the encrypted portion is the remaining packet_size-1
// bytes.
func encryptVideoFrame(block cipher.Block, iv [16]byte, plain []byte, nalLen uint8) ([]byte, model.AuxEntry, error) {
	stream := cipher.NewCTR(block, iv[:])
	out := make([]byte, len(plain))
	aux := model.AuxEntry{IV: iv}

	pos := 0
	for pos < len(plain) {
		if pos+int(nalLen) > len(plain) {
			return nil, model.AuxEntry{}, model.NewError(model.BadData, "cenc.encryptVideoFrame", model.ErrTruncatedFrame)
		}
		var packetSize uint32
		for i := 0; i < int(nalLen); i++ {
			packetSize = (packetSize << 8) | uint32(plain[pos+i])
		}
		copy(out[pos:pos+int(nalLen)], plain[pos:pos+int(nalLen)])
		pos += int(nalLen)

		if packetSize == 0 {
			return nil, model.AuxEntry{}, model.NewError(model.BadData, "cenc.encryptVideoFrame", model.ErrTruncatedFrame)
		}
		if pos+int(packetSize) > len(plain) {
			return nil, model.AuxEntry{}, model.NewError(model.BadData, "cenc.encryptVideoFrame", model.ErrTruncatedFrame)
		}

		// The NAL type byte (one byte of the packet) stays clear alongside
		// the size field; everything after it is encrypted.
		out[pos] = plain[pos]
		clearBytes := uint16(nalLen) + 1
		pos++
		encryptedBytes := packetSize - 1

		if encryptedBytes > 0 {
			stream.XORKeyStream(out[pos:pos+int(encryptedBytes)], plain[pos:pos+int(encryptedBytes)])
		}
		pos += int(encryptedBytes)

		aux.Subsamples = append(aux.Subsamples, model.AuxSubsample{
			BytesClear:     clearBytes,
			BytesEncrypted: encryptedBytes,
		})
	}
	return out, aux, nil
}
