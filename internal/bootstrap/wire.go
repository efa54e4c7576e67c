package bootstrap

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"voxlink/internal/audio"
	"voxlink/internal/config"
	"voxlink/internal/logging"
	"voxlink/internal/metrics"
	"voxlink/internal/pcm"
	"voxlink/internal/ports"
	"voxlink/internal/transport"
	"voxlink/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Build loads configuration and wires the streaming client around eventSink.
func Build(opts config.LoadOptions, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return Services{}, err
	}
	return Wire(cfg, eventSink), nil
}

// Wire assembles the runtime graph from an already validated config.
func Wire(cfg config.Config, eventSink ports.EventSink) Services {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	m := metrics.New(prometheus.NewRegistry())

	controller := usecase.NewSessionController(
		audioSource(cfg.Audio),
		transport.NewDialer(transport.Config{}, logging.Component(logger, "transport")),
		usecase.SystemScheduler{},
		eventSink,
		usecase.Config{
			URL: cfg.Stream.URL,
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:      cfg.Stream.ChunkSize,
			ReconnectDelay: cfg.Stream.ReconnectDelay,
			Pipeline: pcm.NewPipeline(cfg.Stream.TargetSampleRate, pcm.Conditioner{
				Gain:           cfg.Stream.Gain,
				NoiseThreshold: cfg.Stream.NoiseThreshold,
			}),
			Logger:  logger,
			Metrics: m,
		},
	)

	return Services{Controller: controller, Config: cfg, Logger: logger, Metrics: m}
}

// audioSource picks the WAV file source when a file is configured and the
// ffmpeg microphone capture otherwise.
func audioSource(cfg config.AudioConfig) ports.AudioCapture {
	if cfg.File != "" {
		return audio.NewWAVSource(cfg.File, cfg.Realtime)
	}
	return audio.NewFFMPEGCapture(cfg.RecorderCommand)
}
