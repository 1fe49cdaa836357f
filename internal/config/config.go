// ABOUTME: Runtime configuration loaded from DUALDECK_* environment variables
// ABOUTME: Optionally seeded from a .env file; flags in main override these values
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/audio/output"
	"github.com/dualdeck/dualdeck-go/pkg/dualdeck"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every key
const EnvPrefix = "DUALDECK_"

// Config holds all runtime configuration
type Config struct {
	// Sources: file, directory, .m3u playlist or tone:<hz>[:<seconds>]
	SourceA string
	SourceB string
	Shuffle bool

	// Routing
	Mode    string // split or same
	Swap    bool
	Primary string // A or B
	VolumeA float64
	VolumeB float64

	// Output
	Output      string // oto, malgo or wav
	OutputFile  string // wav only
	SampleRate  int    // used when slot A is empty
	ChunkFrames int
	StopTimeout time.Duration

	// Remote control
	Listen string
	Remote bool
	MDNS   bool
	Name   string

	// Logging
	LogFile   string
	LogLevel  string
	LogFormat string // text or json
}

// Load reads envFile when it exists, then the environment
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	return Config{
		SourceA: envStr("SOURCE_A", ""),
		SourceB: envStr("SOURCE_B", ""),
		Shuffle: envBool("SHUFFLE", false),

		Mode:    envStr("MODE", "split"),
		Swap:    envBool("SWAP", false),
		Primary: envStr("PRIMARY", "A"),
		VolumeA: envFloat("VOLUME_A", 1.0),
		VolumeB: envFloat("VOLUME_B", 1.0),

		Output:      envStr("OUTPUT", output.BackendOto),
		OutputFile:  envStr("OUTPUT_FILE", ""),
		SampleRate:  envInt("SAMPLE_RATE", dualdeck.DefaultSampleRate),
		ChunkFrames: envInt("CHUNK_FRAMES", dualdeck.DefaultChunkFrames),
		StopTimeout: envDuration("STOP_TIMEOUT", dualdeck.DefaultStopTimeout),

		Listen: envStr("LISTEN", ":8930"),
		Remote: envBool("REMOTE", false),
		MDNS:   envBool("MDNS", true),
		Name:   envStr("NAME", ""),

		LogFile:   envStr("LOG_FILE", "dualdeck.log"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}, nil
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error

	if _, err := dualdeck.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := dualdeck.ParseSlot(c.Primary); err != nil {
		errs = append(errs, fmt.Errorf("primary: %w", err))
	}
	if c.VolumeA < 0 || c.VolumeB < 0 {
		errs = append(errs, errors.New("volume must not be negative"))
	}

	switch c.Output {
	case output.BackendOto, output.BackendMalgo:
	case output.BackendWAV:
		if c.OutputFile == "" {
			errs = append(errs, errors.New("wav output requires an output file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown output %q", c.Output))
	}

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.ChunkFrames <= 0 {
		errs = append(errs, fmt.Errorf("chunk frames must be positive, got %d", c.ChunkFrames))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, errors.New("stop timeout must be positive"))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Formatter returns the logrus formatter for LogFormat
func (c Config) Formatter() logrus.Formatter {
	if strings.EqualFold(c.LogFormat, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
