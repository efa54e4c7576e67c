package usecase

import (
	"errors"
	"testing"
	"time"

	"voxlink/internal/domain"
)

func TestPumpAudioFramesDeliversUntilEOF(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{frames: []domain.AudioFrame{
		{Samples: []float32{0.1, 0.2}, SampleRate: 16000},
		{Samples: []float32{0.3}, SampleRate: 16000},
	}}

	var frames []domain.AudioFrame
	var endErr error
	ended := false
	pumpAudioFrames(audio, 512, func(f domain.AudioFrame) { frames = append(frames, f) }, func(err error) {
		ended = true
		endErr = err
	})

	if len(frames) != 2 || frames[1].Samples[0] != 0.3 {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	if !ended || endErr != nil {
		t.Fatalf("expected clean end, got ended=%v err=%v", ended, endErr)
	}
	if audio.lastMax != 512 {
		t.Fatalf("expected chunk size 512, got %d", audio.lastMax)
	}
}

func TestPumpAudioFramesReportsReadError(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{readErr: errors.New("device unplugged")}
	var endErr error
	pumpAudioFrames(audio, 0, func(domain.AudioFrame) {
		t.Fatalf("no frame expected")
	}, func(err error) { endErr = err })

	if endErr == nil || endErr.Error() != "device unplugged" {
		t.Fatalf("expected read error, got %v", endErr)
	}
	if audio.lastMax != 4096 {
		t.Fatalf("expected default chunk size, got %d", audio.lastMax)
	}
}

func TestSystemSchedulerStop(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	timer := SystemScheduler{}.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	if !timer.Stop() {
		t.Fatalf("expected pending timer to stop")
	}

	SystemScheduler{}.AfterFunc(time.Millisecond, func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
}
