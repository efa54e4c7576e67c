package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"voxlink/internal/domain"
	"voxlink/internal/metrics"
	"voxlink/internal/ports"
	"voxlink/internal/usecase"
)

type unusedDialer struct{}

func (unusedDialer) Dial(_ context.Context, _ string, _ ports.ConnHandlers) ports.Conn {
	panic("dial not expected")
}

func TestStatusMux(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	controller := usecase.NewSessionController(nil, unusedDialer{}, nil, NewApp(&bytes.Buffer{}), usecase.Config{
		URL:     "ws://localhost:8011",
		Logger:  zerolog.Nop(),
		Metrics: m,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	server := httptest.NewServer(statusMux(m, controller))
	defer server.Close()

	resp, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status     domain.Status    `json:"status"`
		Transcript []domain.Segment `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Status.State != domain.SessionStateIdle || len(body.Transcript) != 0 {
		t.Fatalf("unexpected status: %+v", body)
	}

	metricsResp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics get failed: %v", err)
	}
	defer metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", metricsResp.StatusCode)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "voxlink version") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestFlagKeysMatchStreamFlags(t *testing.T) {
	t.Parallel()

	for key, name := range flagKeys {
		if streamCmd.Flags().Lookup(name) == nil {
			t.Fatalf("config key %s maps to missing flag %s", key, name)
		}
	}
}
