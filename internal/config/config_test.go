package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func inTempDir(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t, nil)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" || cfg.ReadLimit != 32768 {
		t.Fatalf("defaults=%+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Fatalf("ping_period=%s", cfg.PingPeriod)
	}
}

func TestLoadFile(t *testing.T) {
	inTempDir(t, map[string]string{
		"config/config.test.yaml": "mode: debug\nport: 9000\nping_period: 10s\nrooms_per_minute: 0\n",
	})
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "debug" || cfg.Port != 9000 || cfg.PingPeriod != 10*time.Second || cfg.RoomsPerMinute != 0 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadPeerFlagsOverrideFile(t *testing.T) {
	inTempDir(t, map[string]string{
		"config/peer.test.yaml": "signal_url: http://store:8080\nice_candidate_pool_size: 4\ncapture:\n  video: false\n",
	})
	t.Setenv("CONFIG_ENV", "test")

	fs := pflag.NewFlagSet("peer", pflag.ContinueOnError)
	PeerFlags(fs)
	if err := fs.Parse([]string{"--signal_url=http://other:9000", "--screen"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := LoadPeer(fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SignalURL != "http://other:9000" {
		t.Fatalf("signal_url=%q, flag must win", cfg.SignalURL)
	}
	if cfg.ICECandidatePoolSize != 4 {
		t.Fatalf("pool size=%d, want file value", cfg.ICECandidatePoolSize)
	}
	if !cfg.Screen || !cfg.Capture.Audio || cfg.Capture.Video {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("ice_servers=%v, want the two defaults", cfg.ICEServers)
	}
}
