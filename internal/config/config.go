package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the signaling store server configuration.
type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// RoomsPerMinute caps room creation per client token; 0 disables the cap.
	RoomsPerMinute int `mapstructure:"rooms_per_minute"`
}

// PeerConfig is the peer CLI configuration.
type PeerConfig struct {
	SignalURL            string        `mapstructure:"signal_url"`
	ICEServers           []string      `mapstructure:"ice_servers"`
	ICECandidatePoolSize uint8         `mapstructure:"ice_candidate_pool_size"`
	ReserveMedia         []string      `mapstructure:"reserve_media"`
	LogLevel             string        `mapstructure:"log_level"`
	Capture              CaptureConfig `mapstructure:"capture"`
	Screen               bool          `mapstructure:"screen"`
}

type CaptureConfig struct {
	Audio  bool `mapstructure:"audio"`
	Video  bool `mapstructure:"video"`
	Screen bool `mapstructure:"screen"`
}

func newViper(name string) (*viper.Viper, string) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/%s.%s.yaml", name, env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return v, fileName
}

func read(v *viper.Viper, fileName string) {
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}
}

// Load reads config/config.<CONFIG_ENV>.yaml over the server defaults.
func Load() (*Config, error) {
	v, fileName := newViper("config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "duplex-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("rooms_per_minute", 30)

	read(v, fileName)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("server config")
	return &cfg, nil
}

// PeerFlags declares the peer CLI flags; every flag overrides the key of the same name.
func PeerFlags(fs *pflag.FlagSet) {
	fs.String("signal_url", "http://localhost:8080", "signaling store base URL")
	fs.StringSlice("ice_servers", []string{"stun:stun1.l.google.com:19302", "stun:stun2.l.google.com:19302"}, "ICE server URLs")
	fs.Uint8("ice_candidate_pool_size", 10, "ICE candidates gathered before the offer")
	fs.StringSlice("reserve_media", []string{"audio", "video"}, "media sections reserved before the offer")
	fs.String("log_level", "info", "log level")
	fs.Bool("screen", false, "share the screen once the session is up")
}

// LoadPeer reads config/peer.<CONFIG_ENV>.yaml, then applies flags from fs.
func LoadPeer(fs *pflag.FlagSet) (*PeerConfig, error) {
	v, fileName := newViper("peer")

	v.SetDefault("capture.audio", true)
	v.SetDefault("capture.video", true)
	v.SetDefault("capture.screen", true)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	read(v, fileName)

	var cfg PeerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.SignalURL == "" {
		return nil, fmt.Errorf("signal_url is required")
	}
	return &cfg, nil
}

// SetupLogging configures the global zerolog logger for terminal output.
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
