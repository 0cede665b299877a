package frameio

import (
	"testing"

	"github.com/jmylchreest/vodpackager/internal/vod/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCacheFetchExactRange(t *testing.T) {
	c := NewReadCache(nil)
	c.Append(100, []byte("hello world"))

	got, err := c.Fetch(100, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestReadCacheFetchAcrossChunks(t *testing.T) {
	c := NewReadCache(nil)
	c.Append(0, []byte("abc"))
	c.Append(3, []byte("def"))

	got, err := c.Fetch(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("bcde"), got)
}

func TestReadCacheFetchMissingRangeReturnsAgain(t *testing.T) {
	c := NewReadCache(nil)
	c.Append(0, []byte("abc"))

	_, err := c.Fetch(0, 10)
	require.Error(t, err)
	assert.True(t, model.IsAgain(err))
}

func TestReadCacheFetchAfterCloseIsFatal(t *testing.T) {
	c := NewReadCache(nil)
	c.Append(0, []byte("abc"))
	c.Close()

	_, err := c.Fetch(0, 10)
	require.Error(t, err)
	assert.False(t, model.IsAgain(err))
}

func TestReadCacheRetryAfterAppendSucceeds(t *testing.T) {
	c := NewReadCache(nil)
	c.Append(0, []byte("ab"))

	_, err := c.Fetch(0, 4)
	require.True(t, model.IsAgain(err))

	c.Append(2, []byte("cd"))
	got, err := c.Fetch(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), got)
}

func TestFrameCursorAdvanceRollsOverFrames(t *testing.T) {
	cur := &FrameCursor{}
	cur.Advance(10, 10)
	assert.Equal(t, 1, cur.CurFrame)
	assert.Equal(t, 0, cur.CurFramePos)

	cur.Advance(4, 10)
	assert.False(t, cur.Done(2))
	assert.Equal(t, 4, cur.CurFramePos)

	cur.Advance(6, 10)
	assert.True(t, cur.Done(2))
}

func TestBufferWriterTracksOffset(t *testing.T) {
	w := NewBufferWriter(0, nil)
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), w.Offset())
	assert.Equal(t, []byte("abc"), w.Bytes())
}

func TestSimulationWriterMatchesBufferWriterOffset(t *testing.T) {
	sim := NewSimulationWriter(0)
	buf := NewBufferWriter(0, nil)

	for _, p := range [][]byte{[]byte("abc"), []byte("de"), []byte("fghi")} {
		sim.Write(p)
		buf.Write(p)
	}

	require.NoError(t, buf.CheckOffset(sim.Offset()))
}
