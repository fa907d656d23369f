package alarm

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/require"
)

func silentPlayer(t *testing.T, samples int) (*Player, *[]beep.Streamer) {
	t.Helper()
	format := beep.Format{SampleRate: 8000, NumChannels: 2, Precision: 2}
	buffer := beep.NewBuffer(format)
	buffer.Append(beep.Silence(samples))

	var started []beep.Streamer
	p := newPlayer(buffer, func(s ...beep.Streamer) {
		started = append(started, s...)
	}, nil, slog.New(slog.DiscardHandler))
	return p, &started
}

func drain(s beep.Streamer) {
	buf := make([][2]float64, 64)
	for {
		if _, ok := s.Stream(buf); !ok {
			return
		}
	}
}

func TestPlayIsIdempotentWhilePlaying(t *testing.T) {
	p, started := silentPlayer(t, 200)
	require.False(t, p.IsPlaying())

	p.Play()
	require.True(t, p.IsPlaying())
	require.Len(t, *started, 1)

	p.Play()
	p.Play()
	require.True(t, p.IsPlaying())
	require.Len(t, *started, 1)
}

func TestPlayRestartsAfterSoundEnds(t *testing.T) {
	p, started := silentPlayer(t, 200)

	p.Play()
	drain((*started)[0])
	require.False(t, p.IsPlaying())

	p.Play()
	require.True(t, p.IsPlaying())
	require.Len(t, *started, 2)
}

func TestClose(t *testing.T) {
	p, _ := silentPlayer(t, 10)
	p.Play()
	p.Close()
	require.False(t, p.IsPlaying())
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o644))

	_, err := Load(path, slog.New(slog.DiscardHandler))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.wav"), slog.New(slog.DiscardHandler))
	require.Error(t, err)
}
