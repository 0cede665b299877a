// Package frameio provides the backpressure-aware source/sink contracts the
// HDS and CENC muxers read frame bytes through and write fragment bytes to.
//
// The muxers never block: a source that has not yet received the bytes a
// frame needs returns model.Again, and the caller is expected to retry the
// same call once more data has arrived. This mirrors the non-blocking half
// of the teacher's internal/relay.CyclicBuffer (see
// ReadChunksForClient/WriteChunk in cyclic_buffer.go) but drops the
// blocking Wait/ReadWithWait side entirely: a muxer suspension is not a
// client waiting on a channel, it is a state machine returning control to
// its caller so the caller can schedule other work before calling back in.
package frameio

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// chunk is one append-only write to a ReadCache, tagged with the absolute
// byte offset it starts at (the same Sequence-less, offset-addressed shape
// as the teacher's BufferChunk, minus the per-client sequence bookkeeping a
// single-consumer cache does not need).
type chunk struct {
	offset int64
	data   []byte
}

// ReadCache is an append-only, offset-addressed byte source. Producers call
// Append as bytes arrive (e.g. from an upstream HTTP range fetch); the
// muxer calls Fetch for the exact byte range one frame needs. A muxer
// resolving a frame whose bytes have not arrived yet gets model.Again back
// and must retry Fetch later with no change to the requested range.
type ReadCache struct {
	mu     sync.Mutex
	chunks []chunk
	closed bool
	logger *slog.Logger
}

// NewReadCache returns an empty cache. logger receives structural-violation
// logs per spec §7 (a Fetch against a closed cache for bytes that will
// never arrive); a nil logger defaults to slog.Default().
func NewReadCache(logger *slog.Logger) *ReadCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadCache{logger: logger}
}

// Append adds newly-arrived bytes at the given absolute offset. Chunks may
// arrive out of order (parallel range fetches); Fetch reassembles across
// chunk boundaries.
func (c *ReadCache) Append(offset int64, data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.chunks = append(c.chunks, chunk{offset: offset, data: buf})
}

// Close marks the cache as fully populated: any future Fetch for bytes that
// never arrived returns model.BadData instead of model.Again, since no more
// Append calls will ever satisfy it.
func (c *ReadCache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Fetch returns exactly length bytes starting at offset. If the range is
// not fully covered by chunks appended so far, it returns model.Again
// (unless the cache is closed, in which case it is model.BadData: the
// range will never arrive).
func (c *ReadCache) Fetch(offset int64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, length)
	end := offset + int64(length)
	filled := make([]bool, length)
	remaining := length

	for _, ch := range c.chunks {
		chEnd := ch.offset + int64(len(ch.data))
		if chEnd <= offset || ch.offset >= end {
			continue
		}
		lo := ch.offset
		if lo < offset {
			lo = offset
		}
		hi := chEnd
		if hi > end {
			hi = end
		}
		for pos := lo; pos < hi; pos++ {
			idx := pos - offset
			if !filled[idx] {
				filled[idx] = true
				remaining--
			}
			out[idx] = ch.data[pos-ch.offset]
		}
	}

	if remaining > 0 {
		if c.closed {
			err := model.NewError(model.BadData, "frameio.Fetch", model.ErrTruncatedFrame)
			model.LogError(c.logger, "frameio.Fetch", err)
			return nil, err
		}
		return nil, model.NewError(model.Again, "frameio.Fetch", nil)
	}
	return out, nil
}
