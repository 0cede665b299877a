package frameio

import (
	"log/slog"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
)

// Sink receives fragment bytes during the muxer's write pass. It never
// blocks and never splits a Write across a frame boundary in a way the
// caller needs to know about: implementations are expected to be simple
// in-memory or streaming-to-socket buffers.
type Sink interface {
	Write(p []byte) (int, error)
}

// SimulationWriter is the no-op Sink used during a muxer's first
// ("simulation") pass: it never touches actual bytes, only accumulates the
// offset a real write pass would have reached. hds.BuildFragment does not
// use it: it computes each frame's offset arithmetically into
// hds.FrameRef.OutputOffset.
type SimulationWriter struct {
	offset int64
}

// NewSimulationWriter returns a writer starting at the given base offset
// (normally 0; non-zero lets a muxer simulate a fragment that will be
// appended after an already-known prefix, such as a shared init segment).
func NewSimulationWriter(base int64) *SimulationWriter {
	return &SimulationWriter{offset: base}
}

func (w *SimulationWriter) Write(p []byte) (int, error) {
	w.offset += int64(len(p))
	return len(p), nil
}

// Offset returns the current simulated write position.
func (w *SimulationWriter) Offset() int64 { return w.offset }

// BufferWriter is the real ("write") pass Sink: an in-memory byte buffer
// that also tracks its current offset so a caller can cross-check it
// against a precomputed size and fail closed on a mismatch.
type BufferWriter struct {
	buf    []byte
	offset int64
	logger *slog.Logger
}

// NewBufferWriter returns an empty buffer writer, optionally pre-sized via
// capacity to avoid reallocation during the write pass. logger is the same
// structural-violation logging shim CheckOffset uses when this writer's
// offset is checked against a simulation pass; a nil logger defaults to
// slog.Default().
func NewBufferWriter(capacity int, logger *slog.Logger) *BufferWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferWriter{buf: make([]byte, 0, capacity), logger: logger}
}

func (w *BufferWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	w.offset += int64(len(p))
	return len(p), nil
}

// Offset returns the number of bytes written so far.
func (w *BufferWriter) Offset() int64 { return w.offset }

// Bytes returns the accumulated fragment bytes.
func (w *BufferWriter) Bytes() []byte { return w.buf }

// CheckOffset compares got against want (the simulation pass's predicted
// offset), returning model.Unexpected on mismatch. The package command
// checks once, after the whole fragment body is written, against
// hds.Fragment.TotalSize.
func CheckOffset(got, want int64) error {
	if got != want {
		return model.NewError(model.Unexpected, "frameio.CheckOffset", model.ErrSizeMismatch)
	}
	return nil
}

// CheckOffset is the same offset cross-check as the package-level
// CheckOffset, logging through w's logger on mismatch (spec §7: size
// mismatches between a precomputed header and the bytes actually emitted
// are Unexpected, always logged, never best-effort).
func (w *BufferWriter) CheckOffset(want int64) error {
	err := CheckOffset(w.offset, want)
	if err != nil {
		model.LogError(w.logger, "frameio.CheckOffset", err)
	}
	return err
}
