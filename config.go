package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/clalos/zoneguard/internal/detect"
	"github.com/clalos/zoneguard/internal/notify"
	"github.com/clalos/zoneguard/internal/zone"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the mail credentials.
const (
	envEmailSender   = "EMAIL_SENDER"
	envEmailPassword = "EMAIL_PASSWORD"
	envEmailReceiver = "EMAIL_RECEIVER"
)

// Config holds the application configuration. Values come from built-in
// defaults, then the optional YAML file, then command-line flags. Mail
// credentials are only ever read from the environment.
type Config struct {
	Source       string   `yaml:"source"`
	Model        string   `yaml:"model"`
	ClassFile    string   `yaml:"classes"`
	Targets      []string `yaml:"targets"`
	Alarm        string   `yaml:"alarm"`
	ResultsDir   string   `yaml:"results_dir"`
	MaxSnapshots int      `yaml:"max_snapshots"`
	Width        int      `yaml:"width"`
	Confidence   float64  `yaml:"confidence"`
	NMS          float64  `yaml:"nms"`
	DNNBackend   string   `yaml:"dnn_backend"`
	DNNTarget    string   `yaml:"dnn_target"`
	Zone         string   `yaml:"zone"`
	Headless     bool     `yaml:"headless"`
	LogFormat    string   `yaml:"log_format"`
	MetricsAddr  string   `yaml:"metrics_addr"`
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`

	// Mail is filled from the environment after the .env file is loaded.
	Mail notify.Config `yaml:"-"`
	// EnvFile is the dotenv file that was loaded, or empty if none was found.
	EnvFile string `yaml:"-"`

	zone zone.Polygon
}

func defaultConfig() *Config {
	return &Config{
		Targets:      []string{"person"},
		ResultsDir:   "Detected Photos",
		MaxSnapshots: 3,
		Width:        640,
		Confidence:   detect.DefaultProbabilityThreshold,
		NMS:          detect.DefaultNmsIouThreshold,
		DNNBackend:   "default",
		DNNTarget:    "cpu",
		LogFormat:    "json",
		SMTPHost:     notify.DefaultHost,
		SMTPPort:     notify.DefaultPort,
	}
}

// parseFlags parses command-line arguments and returns the application configuration.
func parseFlags() (*Config, error) {
	parser := argparse.NewParser("zoneguard", "Restricted zone intrusion detector")
	source := parser.String("s", "source", &argparse.Options{Help: "Video file, stream URL or camera index"})
	model := parser.String("m", "model", &argparse.Options{Help: "YOLO ONNX model file"})
	classFile := parser.String("", "classes", &argparse.Options{Help: "Class names file, one per line (default: COCO)"})
	targets := parser.String("t", "target", &argparse.Options{Help: "Comma-separated target classes (default: person)"})
	alarm := parser.String("a", "alarm", &argparse.Options{Help: "Alarm sound file (.wav or .mp3)"})
	results := parser.String("r", "results", &argparse.Options{Help: "Snapshot directory (default: Detected Photos)"})
	snapshots := parser.Int("n", "snapshots", &argparse.Options{Default: -1, Help: "Maximum snapshots per run, 0 disables snapshots (default: 3)"})
	width := parser.Int("w", "width", &argparse.Options{Help: "Frame width used for editing and detection (default: 640)"})
	confidence := parser.Float("", "confidence", &argparse.Options{Help: "Minimum detection confidence (default: 0.5)"})
	nms := parser.Float("", "nms", &argparse.Options{Help: "NMS IoU threshold (default: 0.45)"})
	dnnBackend := parser.String("", "dnn-backend", &argparse.Options{Help: "OpenCV DNN backend: default, cuda, openvino"})
	dnnTarget := parser.String("", "dnn-target", &argparse.Options{Help: "OpenCV DNN target: cpu, cuda, cuda_fp16"})
	zoneFlag := parser.String("z", "zone", &argparse.Options{Help: "Preset zone as x,y;x,y;x,y;x,y (skips drawing)"})
	headless := parser.Flag("", "headless", &argparse.Options{Help: "Run without a window (requires --zone)"})
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file"})
	envFile := parser.String("e", "env", &argparse.Options{Help: "Dotenv file with mail credentials", Default: ".env"})
	logfmt := parser.String("l", "logfmt", &argparse.Options{Help: "Log format: json or kv"})
	metricsAddr := parser.String("", "metrics-addr", &argparse.Options{Help: "Serve Prometheus metrics on this address, e.g. :9090"})
	smtpHost := parser.String("", "smtp-host", &argparse.Options{Help: "SMTP server (default: smtp.gmail.com)"})
	smtpPort := parser.Int("", "smtp-port", &argparse.Options{Help: "SMTP port (default: 587)"})

	if err := parser.Parse(os.Args); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if *configFile != "" {
		if err := loadConfigFile(*configFile, cfg); err != nil {
			return nil, err
		}
	}

	setString(&cfg.Source, *source)
	setString(&cfg.Model, *model)
	setString(&cfg.ClassFile, *classFile)
	setString(&cfg.Alarm, *alarm)
	setString(&cfg.ResultsDir, *results)
	setString(&cfg.DNNBackend, *dnnBackend)
	setString(&cfg.DNNTarget, *dnnTarget)
	setString(&cfg.Zone, *zoneFlag)
	setString(&cfg.LogFormat, *logfmt)
	setString(&cfg.MetricsAddr, *metricsAddr)
	setString(&cfg.SMTPHost, *smtpHost)
	if *targets != "" {
		cfg.Targets = strings.Split(*targets, ",")
	}
	if *snapshots != -1 {
		cfg.MaxSnapshots = *snapshots
	}
	if *width != 0 {
		cfg.Width = *width
	}
	if *confidence != 0 {
		cfg.Confidence = *confidence
	}
	if *nms != 0 {
		cfg.NMS = *nms
	}
	if *smtpPort != 0 {
		cfg.SMTPPort = *smtpPort
	}
	if *headless {
		cfg.Headless = true
	}

	for i, t := range cfg.Targets {
		cfg.Targets[i] = strings.TrimSpace(t)
	}

	if err := cfg.loadEnv(*envFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current value.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// loadEnv loads the dotenv file, if present, and reads the mail settings
// from the environment. Variables already set in the environment win over
// the file.
func (c *Config) loadEnv(path string) error {
	if path != "" {
		err := godotenv.Load(path)
		switch {
		case err == nil:
			c.EnvFile = path
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	c.Mail = notify.Config{
		Host:      c.SMTPHost,
		Port:      c.SMTPPort,
		Sender:    os.Getenv(envEmailSender),
		Password:  os.Getenv(envEmailPassword),
		Recipient: os.Getenv(envEmailReceiver),
	}
	return nil
}

// Validate checks required fields and ranges and parses the preset zone.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if detect.NewTargetSet(c.Targets...).Len() == 0 {
		return fmt.Errorf("at least one target class is required")
	}
	if c.MaxSnapshots < 0 {
		return fmt.Errorf("snapshots must not be negative")
	}
	if c.Width <= 0 {
		return fmt.Errorf("width must be positive")
	}
	if c.Confidence <= 0.0 || c.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0")
	}
	if c.NMS <= 0.0 || c.NMS > 1.0 {
		return fmt.Errorf("nms must be between 0.0 and 1.0")
	}
	if c.LogFormat != "json" && c.LogFormat != "kv" {
		return fmt.Errorf("logfmt must be 'json' or 'kv'")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("smtp port %d out of range", c.SMTPPort)
	}

	c.zone = nil
	if c.Zone != "" {
		poly, err := zone.ParsePolygon(c.Zone)
		if err != nil {
			return fmt.Errorf("invalid zone: %w", err)
		}
		if !poly.Ready() {
			return fmt.Errorf("invalid zone: %w", zone.ErrZoneIncomplete)
		}
		c.zone = poly
	}
	if c.Headless && c.zone == nil {
		return fmt.Errorf("headless mode requires a preset zone")
	}
	return nil
}

// TargetSet returns the configured target classes.
func (c *Config) TargetSet() detect.TargetSet {
	return detect.NewTargetSet(c.Targets...)
}

// PresetZone returns the parsed --zone polygon, or nil.
func (c *Config) PresetZone() zone.Polygon {
	return c.zone.Clone()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
