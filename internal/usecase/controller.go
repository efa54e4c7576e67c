package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxlink/internal/domain"
	"voxlink/internal/logging"
	"voxlink/internal/metrics"
	"voxlink/internal/pcm"
	"voxlink/internal/ports"
)

// Config controls one streaming client.
type Config struct {
	URL            string
	Audio          ports.AudioConfig
	ChunkSize      int
	ReconnectDelay time.Duration
	Pipeline       pcm.Pipeline

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// SessionController is the goroutine-safe entry point to the streaming
// core. Run must be running for any other method to take effect.
type SessionController struct {
	audio ports.AudioCapture
	loop  *Loop
	core  *session

	startMu sync.Mutex
}

func NewSessionController(
	audio ports.AudioCapture,
	dialer ports.Dialer,
	scheduler ports.Scheduler,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	cfg.ReconnectDelay = reconnectDelay(cfg.ReconnectDelay)
	if cfg.Pipeline.TargetRate <= 0 {
		cfg.Pipeline = pcm.NewPipeline(pcm.DefaultTargetRate, cfg.Pipeline.Conditioner)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	if scheduler == nil {
		scheduler = SystemScheduler{}
	}
	cfg.Logger = logging.Component(cfg.Logger, "session")

	loop := NewLoop()
	return &SessionController{
		audio: audio,
		loop:  loop,
		core:  newSession(cfg, dialer, scheduler, events, loop.Post),
	}
}

// Run drives the session until ctx is done, then tears it down.
func (c *SessionController) Run(ctx context.Context) error {
	c.core.ctx = ctx
	err := c.loop.Run(ctx)
	c.core.stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Start acquires the audio source and connects. Capture failures are
// reported to the event sink and returned.
func (c *SessionController) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	var active bool
	if err := c.loop.Call(ctx, func() { active = c.core.active() }); err != nil {
		return err
	}
	if active {
		return ErrAlreadyStarted
	}

	audio, err := c.audio.Start(context.WithoutCancel(ctx), c.core.cfg.Audio)
	if err != nil {
		_ = c.loop.Call(ctx, func() { c.core.fail(err) })
		return err
	}

	var beginErr error
	callErr := c.loop.Call(ctx, func() {
		if ctx.Err() != nil {
			_ = audio.Stop()
			beginErr = ctx.Err()
			return
		}
		beginErr = c.core.begin(audio)
		if beginErr != nil {
			_ = audio.Stop()
		}
	})
	if errors.Is(callErr, ErrLoopStopped) {
		_ = audio.Stop()
		return callErr
	}
	if callErr != nil {
		return callErr
	}
	return beginErr
}

// Stop tears the session down. It never blocks and is safe to call from
// event sink callbacks.
func (c *SessionController) Stop() {
	c.loop.Post(c.core.stop)
}

// Connect dials now if the session is disconnected. It never blocks.
func (c *SessionController) Connect() {
	c.loop.Post(c.core.connect)
}

// Status returns a snapshot of the session.
func (c *SessionController) Status(ctx context.Context) (domain.Status, error) {
	var status domain.Status
	err := c.loop.Call(ctx, func() { status = c.core.status() })
	return status, err
}

// Transcript renders the transcript of the current run.
func (c *SessionController) Transcript(ctx context.Context) ([]domain.Segment, error) {
	var segments []domain.Segment
	err := c.loop.Call(ctx, func() { segments = c.core.ledger.Render() })
	return segments, err
}

// TranscriptText renders the transcript of the current run as plain text.
func (c *SessionController) TranscriptText(ctx context.Context) (string, error) {
	var text string
	err := c.loop.Call(ctx, func() { text = c.core.ledger.Text() })
	return text, err
}
