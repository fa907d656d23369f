package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clalos/zoneguard/internal/zone"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	// Save original args and restore after test
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = append([]string{"zoneguard"}, args...)
}

func TestParseFlags(t *testing.T) {
	noEnv := filepath.Join(t.TempDir(), "missing.env")

	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			args: []string{"-s", "video.mp4", "-m", "yolo11n.onnx"},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, "video.mp4", c.Source)
				require.Equal(t, "yolo11n.onnx", c.Model)
				require.Equal(t, []string{"person"}, c.Targets)
				require.Equal(t, "Detected Photos", c.ResultsDir)
				require.Equal(t, 3, c.MaxSnapshots)
				require.Equal(t, 640, c.Width)
				require.InDelta(t, 0.5, c.Confidence, 1e-9)
				require.InDelta(t, 0.45, c.NMS, 1e-9)
				require.Equal(t, "json", c.LogFormat)
				require.Equal(t, "smtp.gmail.com", c.SMTPHost)
				require.Equal(t, 587, c.SMTPPort)
				require.False(t, c.Headless)
				require.Nil(t, c.PresetZone())
			},
		},
		{
			name: "all options",
			args: []string{
				"--source", "rtsp://cam/stream",
				"--model", "model.onnx",
				"--target", "person, car",
				"--alarm", "alarm.wav",
				"--results", "out",
				"--snapshots", "5",
				"--width", "800",
				"--confidence", "0.6",
				"--nms", "0.5",
				"--zone", "0,0;10,0;10,10;0,10",
				"--headless",
				"--logfmt", "kv",
				"--metrics-addr", ":9090",
				"--smtp-host", "mail.local",
				"--smtp-port", "2525",
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, []string{"person", "car"}, c.Targets)
				require.True(t, c.TargetSet().Contains("car"))
				require.Equal(t, "alarm.wav", c.Alarm)
				require.Equal(t, "out", c.ResultsDir)
				require.Equal(t, 5, c.MaxSnapshots)
				require.Equal(t, 800, c.Width)
				require.InDelta(t, 0.6, c.Confidence, 1e-9)
				require.True(t, c.Headless)
				require.Equal(t, zone.Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, c.PresetZone())
				require.Equal(t, "kv", c.LogFormat)
				require.Equal(t, ":9090", c.MetricsAddr)
				require.Equal(t, "mail.local", c.Mail.Host)
				require.Equal(t, 2525, c.Mail.Port)
			},
		},
		{
			name:    "missing source",
			args:    []string{"-m", "model.onnx"},
			wantErr: true,
		},
		{
			name:    "missing model",
			args:    []string{"-s", "video.mp4"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--logfmt", "xml"},
			wantErr: true,
		},
		{
			name:    "invalid confidence",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--confidence", "1.5"},
			wantErr: true,
		},
		{
			name:    "negative snapshots",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--snapshots", "-2"},
			wantErr: true,
		},
		{
			name: "zero snapshots disables capture",
			args: []string{"-s", "video.mp4", "-m", "model.onnx", "--snapshots", "0"},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, 0, c.MaxSnapshots)
			},
		},
		{
			name:    "blank targets",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--target", " , "},
			wantErr: true,
		},
		{
			name:    "zone with three points",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--zone", "0,0;10,0;10,10"},
			wantErr: true,
		},
		{
			name:    "malformed zone",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--zone", "0,0;10"},
			wantErr: true,
		},
		{
			name:    "headless without zone",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--headless"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"-s", "video.mp4", "-m", "model.onnx", "--bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, append(tt.args, "--env", noEnv)...)

			got, err := parseFlags()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestConfigFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoneguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: file.mp4
model: file.onnx
targets: [person, dog]
max_snapshots: 7
width: 1280
zone: "1,1;50,1;50,50;1,50"
log_format: kv
`), 0o644))

	withArgs(t, "--config", path, "--width", "320", "--env", filepath.Join(dir, "none.env"))

	c, err := parseFlags()
	require.NoError(t, err)
	require.Equal(t, "file.mp4", c.Source)
	require.Equal(t, "file.onnx", c.Model)
	require.Equal(t, []string{"person", "dog"}, c.Targets)
	require.Equal(t, 7, c.MaxSnapshots)
	require.Equal(t, 320, c.Width, "flags override the file")
	require.Equal(t, "kv", c.LogFormat)
	require.Len(t, c.PresetZone(), 4)
	require.Equal(t, 0.5, c.Confidence, "defaults survive when the file omits a key")
}

func TestSnapshotsFlagOverridesFileWithZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoneguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: a.mp4\nmodel: a.onnx\nmax_snapshots: 7\n"), 0o644))

	withArgs(t, "--config", path, "--snapshots", "0", "--env", filepath.Join(dir, "none.env"))

	c, err := parseFlags()
	require.NoError(t, err)
	require.Equal(t, 0, c.MaxSnapshots)
}

func TestConfigFileErrors(t *testing.T) {
	dir := t.TempDir()

	withArgs(t, "--config", filepath.Join(dir, "missing.yaml"))
	_, err := parseFlags()
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("width: [not, a, number]\n"), 0o644))
	withArgs(t, "--config", bad, "-s", "v.mp4", "-m", "m.onnx")
	_, err = parseFlags()
	require.Error(t, err)
}

func TestMailFromEnvFile(t *testing.T) {
	for _, key := range []string{envEmailSender, envEmailPassword, envEmailReceiver} {
		prev, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"EMAIL_SENDER=cam@example.com\nEMAIL_PASSWORD=secret\nEMAIL_RECEIVER=me@example.com\n"), 0o644))

	withArgs(t, "-s", "video.mp4", "-m", "model.onnx", "--env", envPath)

	c, err := parseFlags()
	require.NoError(t, err)
	require.Equal(t, envPath, c.EnvFile)
	require.True(t, c.Mail.Enabled())
	require.Equal(t, "cam@example.com", c.Mail.Sender)
	require.Equal(t, "secret", c.Mail.Password)
	require.Equal(t, "me@example.com", c.Mail.Recipient)
}

func TestMissingEnvFileIsFine(t *testing.T) {
	withArgs(t, "-s", "video.mp4", "-m", "model.onnx", "--env", filepath.Join(t.TempDir(), "nope.env"))

	c, err := parseFlags()
	require.NoError(t, err)
	require.Empty(t, c.EnvFile)
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{
			name:   "json logger",
			format: "json",
		},
		{
			name:   "kv logger",
			format: "kv",
		},
		{
			name:   "default to json",
			format: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, setupLogger(tt.format))
		})
	}
}
