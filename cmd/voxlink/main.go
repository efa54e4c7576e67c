package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voxlink/internal/bootstrap"
	"voxlink/internal/config"
	"voxlink/internal/domain"
	"voxlink/internal/metrics"
	"voxlink/internal/usecase"
	"voxlink/internal/version"
)

// flagKeys maps config keys to the stream command flags that override them.
var flagKeys = map[string]string{
	config.KeyURL:            "url",
	config.KeyAudioFile:      "file",
	config.KeyInputDevice:    "device",
	config.KeyGain:           "gain",
	config.KeyNoiseThreshold: "noise-threshold",
	config.KeyMetricsAddr:    "metrics-addr",
	config.KeyLogLevel:       "log-level",
}

var rootCmd = &cobra.Command{
	Use:   "voxlink",
	Short: "Stream audio to a speech recognition service over websocket",
	Long: `voxlink captures microphone or WAV audio, streams it as 16 kHz PCM to a
recognition server over a websocket and prints the transcript as sentences
are committed.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Capture audio and stream it until interrupted",
	RunE:  runStream,
}

func init() {
	streamCmd.Flags().String("config", "", "Config file (yaml, json or toml)")
	streamCmd.Flags().String("env-file", "", "Env file to load (defaults to ./.env when present)")
	streamCmd.Flags().String("url", "", "Recognition server websocket URL")
	streamCmd.Flags().String("file", "", "Stream a WAV file instead of the microphone")
	streamCmd.Flags().String("device", "", "Capture device passed to ffmpeg")
	streamCmd.Flags().Float64("gain", 1, "Amplification applied before encoding")
	streamCmd.Flags().Float64("noise-threshold", 0, "Samples below this magnitude are silenced")
	streamCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	streamCmd.Flags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	streamCmd.Flags().Duration("drain", 5*time.Second, "How long to wait for final sentences after a file ends")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(streamCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStream(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	drain, _ := cmd.Flags().GetDuration("drain")

	app := NewApp(cmd.OutOrStdout())
	services, err := bootstrap.Build(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
		FlagKeys:   flagKeys,
	}, app)
	if err != nil {
		app.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}
	app.SetLogger(services.Logger)
	logger := services.Logger

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if addr := services.Config.Metrics.Addr; addr != "" {
		server := metrics.NewServer(addr, statusMux(services.Metrics, services.Controller), logger)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = server.Stop(shutdownCtx)
		}()
	}

	runDone := make(chan error, 1)
	go func() { runDone <- services.Controller.Run(ctx) }()

	logger.Info().
		Str("version", version.Version).
		Str("url", services.Config.Stream.URL).
		Msg("starting stream")

	if err := services.Controller.Start(ctx); err != nil {
		cancel()
		<-runDone
		return fmt.Errorf("failed to start streaming: %w", err)
	}

	var failed bool
	select {
	case <-ctx.Done():
	case <-app.Failed():
		failed = true
	case <-app.Finished():
		logger.Info().Dur("drain", drain).Msg("audio finished, waiting for final sentences")
		timer := time.NewTimer(drain)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	status, _ := services.Controller.Status(context.Background())
	services.Controller.Stop()
	cancel()
	if err := <-runDone; err != nil {
		return err
	}

	logger.Info().Int("sentences", status.Sentences).Msg("stream finished")
	if failed {
		return fmt.Errorf("session failed: %s", status.Message)
	}
	return nil
}

// statusMux serves Prometheus metrics and a JSON status snapshot.
func statusMux(m *metrics.Metrics, controller *usecase.SessionController) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status, err := controller.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		segments, err := controller.Transcript(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     status,
			"transcript": segments,
		})
	})
	return mux
}
