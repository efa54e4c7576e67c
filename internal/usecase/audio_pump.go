package usecase

import (
	"errors"
	"io"
	"time"

	"voxlink/internal/domain"
	"voxlink/internal/ports"
)

// pumpAudioFrames reads frames until the source ends. onEnd receives nil
// for a normal end of stream and the read error otherwise.
func pumpAudioFrames(
	audio ports.AudioSession,
	chunkSize int,
	onFrame func(domain.AudioFrame),
	onEnd func(error),
) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	for {
		frame, err := audio.ReadFrame(chunkSize)
		if len(frame.Samples) > 0 {
			onFrame(frame)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				onEnd(nil)
			} else {
				onEnd(err)
			}
			return
		}
	}
}

// SystemScheduler schedules reconnect timers on the runtime clock.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return time.AfterFunc(d, fn)
}
