package bufwriter_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ninedraft/gemcore/internal/bufwriter"
)

type sink struct {
	bytes.Buffer
	closes   int
	errWrite error
}

func (s *sink) Write(p []byte) (int, error) {
	if s.errWrite != nil {
		return 0, s.errWrite
	}
	return s.Buffer.Write(p)
}

func (s *sink) Close() error {
	s.closes++
	return nil
}

func TestWriterFlushesOnClose(test *testing.T) {
	var target = &sink{}
	var wr = bufwriter.New(target, 0)

	_, err := wr.WriteString("20 text/gemini\r\n")
	require.NoError(test, err)
	require.Zero(test, target.Len(), "data must stay buffered until close")

	require.NoError(test, wr.Close())
	require.Equal(test, "20 text/gemini\r\n", target.String())
	require.Equal(test, 1, target.closes)

	require.ErrorIs(test, wr.Close(), bufwriter.ErrClosed)
	_, err = wr.Write([]byte("x"))
	require.ErrorIs(test, err, bufwriter.ErrClosed)
	require.Equal(test, 1, target.closes)
}

func TestWriterClosesTargetOnFlushError(test *testing.T) {
	var errBroken = errors.New("broken pipe")
	var target = &sink{errWrite: errBroken}
	var wr = bufwriter.New(target, 16)

	_, _ = wr.WriteString("x")
	require.ErrorIs(test, wr.Close(), errBroken)
	require.Equal(test, 1, target.closes)
}

func TestWriterReset(test *testing.T) {
	var first, second = &sink{}, &sink{}
	var wr = bufwriter.New(first, 0)
	require.NoError(test, wr.Close())

	wr.Reset(second)
	_, err := wr.WriteString("51 not found\r\n")
	require.NoError(test, err)
	require.NoError(test, wr.Close())
	require.Equal(test, "51 not found\r\n", second.String())
	require.Empty(test, first.String())
}
