// Package narration synchronizes text-to-speech playback with a highlighted
// text prefix. Exactly one narration session is active system-wide.
package narration

import (
	"context"
	"time"
	"unicode"
)

// Events receives playback progress for one Speak call. Implementations may
// be invoked from any goroutine.
type Events interface {
	// Boundary reports that playback reached charIndex, counted in runes.
	Boundary(charIndex int)
	Done()
	Failed(err error)
}

// Narrator is the speech capability. Speak starts playback and returns
// without waiting for it to finish; cancelling ctx stops playback and no
// further events are required after that.
type Narrator interface {
	Available() bool
	Speak(ctx context.Context, text string, events Events) error
}

// Unavailable is a Narrator for hosts without speech support.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Speak(context.Context, string, Events) error {
	return errUnavailable
}

// Ticker simulates speech by emitting a boundary at the start of every word
// at a fixed pace, then Done.
type Ticker struct {
	interval time.Duration
}

// NewTicker paces words at wordsPerMinute. Non-positive values fall back to
// 180 words per minute.
func NewTicker(wordsPerMinute int) *Ticker {
	if wordsPerMinute <= 0 {
		wordsPerMinute = 180
	}
	return &Ticker{interval: time.Minute / time.Duration(wordsPerMinute)}
}

func (t *Ticker) Available() bool { return true }

func (t *Ticker) Speak(ctx context.Context, text string, events Events) error {
	starts := WordStarts(text)
	total := len([]rune(text))
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for _, idx := range starts {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events.Boundary(idx)
			}
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
			events.Boundary(total)
			events.Done()
		}
	}()
	return nil
}

// WordStarts returns the rune offset of the first rune of every word in text.
func WordStarts(text string) []int {
	var starts []int
	inWord := false
	i := 0
	for _, r := range text {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			starts = append(starts, i)
		}
		inWord = !space
		i++
	}
	return starts
}
