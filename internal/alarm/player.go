// Package alarm plays the audible intrusion alarm.
package alarm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Player plays one preloaded sound. Play returns immediately; the speaker
// goroutine mixes the sound and clears the playing flag when it ends.
type Player struct {
	buffer  *beep.Buffer
	playing atomic.Bool
	play    func(...beep.Streamer)
	close   func()
	logger  *slog.Logger
}

// Load decodes a .wav or .mp3 file into memory and initialises the speaker
// at the file's sample rate.
func Load(path string, logger *slog.Logger) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alarm sound: %w", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported alarm sound format %q", ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode alarm sound: %w", err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to initialise audio output: %w", err)
	}

	logger.Debug("Alarm sound loaded",
		"path", path,
		"sample_rate", int(format.SampleRate),
		"duration", format.SampleRate.D(buffer.Len()))

	return newPlayer(buffer, speaker.Play, func() {
		speaker.Clear()
		speaker.Close()
	}, logger), nil
}

func newPlayer(buffer *beep.Buffer, play func(...beep.Streamer), closeFn func(), logger *slog.Logger) *Player {
	return &Player{buffer: buffer, play: play, close: closeFn, logger: logger}
}

// IsPlaying reports whether the sound is still being played.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}

// Play starts the sound from the beginning unless it is already playing,
// in which case it does nothing.
func (p *Player) Play() {
	if !p.playing.CompareAndSwap(false, true) {
		return
	}
	p.play(beep.Seq(
		p.buffer.Streamer(0, p.buffer.Len()),
		beep.Callback(func() { p.playing.Store(false) }),
	))
}

// Close stops playback and releases the audio device.
func (p *Player) Close() {
	if p.close != nil {
		p.close()
	}
	p.playing.Store(false)
}
