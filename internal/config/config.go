package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values (production)
const (
	DefaultDomain           = "vmo.o-r.kr:8080"
	DefaultSTUN             = "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302,stun:stun2.l.google.com:19302"
	DefaultTURN             = "turn:vmo.o-r.kr"
	DefaultTURNUser         = "user"
	DefaultTURNPass         = "1234abcd"
	DefaultUsername         = "guest"
	DefaultReactionLifetime = 3 * time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the control plane domain (host[:port])
	Domain string `mapstructure:"domain"`

	// WebSocketURL is constructed from domain unless set explicitly
	WebSocketURL string `mapstructure:"websocket_url"`

	// RecordingsURL is the base URL recording artifacts are fetched from
	RecordingsURL string `mapstructure:"recordings_url"`

	// ICE servers for WebRTC
	STUNServers []string `mapstructure:"-"`
	TURNServer  string   `mapstructure:"turn_server"`
	TURNUser    string   `mapstructure:"turn_username"`
	TURNPass    string   `mapstructure:"turn_password"`
	ForceRelay  bool     `mapstructure:"force_relay"`

	// Local participant
	Username string `mapstructure:"username"`
	AudioOn  bool   `mapstructure:"audio_on"`
	VideoOn  bool   `mapstructure:"video_on"`

	ReactionLifetime time.Duration `mapstructure:"reaction_lifetime"`

	// ChatLogPath, when set, receives the session's chat log on exit
	ChatLogPath string `mapstructure:"chat_log"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile  string
	Domain      string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	Username    string
	NoAudio     bool
	NoVideo     bool
	ChatLogPath string
}

var envBindings = map[string]string{
	"domain":            "DOMAIN",
	"websocket_url":     "WEBSOCKET_URL",
	"recordings_url":    "RECORDINGS_URL",
	"stun_server":       "STUN_SERVER",
	"turn_server":       "TURN_SERVER",
	"turn_username":     "TURN_USERNAME",
	"turn_password":     "TURN_PASSWORD",
	"force_relay":       "FORCE_RELAY",
	"username":          "ROOMCALL_USERNAME",
	"reaction_lifetime": "REACTION_LIFETIME",
	"chat_log":          "CHAT_LOG",
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Config file (roomcall.yaml)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("domain", DefaultDomain)
	v.SetDefault("stun_server", DefaultSTUN)
	v.SetDefault("turn_server", DefaultTURN)
	v.SetDefault("turn_username", DefaultTURNUser)
	v.SetDefault("turn_password", DefaultTURNPass)
	v.SetDefault("force_relay", false)
	v.SetDefault("username", DefaultUsername)
	v.SetDefault("audio_on", true)
	v.SetDefault("video_on", true)
	v.SetDefault("reaction_lifetime", DefaultReactionLifetime.String())

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	applyOverrides(v, opts)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.STUNServers = splitList(v.GetString("stun_server"))
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = fmt.Sprintf("wss://%s", cfg.Domain)
	}
	if cfg.RecordingsURL == "" {
		cfg.RecordingsURL = fmt.Sprintf("https://%s/api/recordings", cfg.Domain)
	}
	cfg.RecordingsURL = strings.TrimSuffix(cfg.RecordingsURL, "/")

	if cfg.ReactionLifetime <= 0 {
		return nil, fmt.Errorf("reaction lifetime must be positive, got %s", cfg.ReactionLifetime)
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("username cannot be empty")
	}

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("roomcall")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "roomcall"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func applyOverrides(v *viper.Viper, opts Options) {
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("domain", opts.Domain)
	set("stun_server", opts.STUNServer)
	set("turn_server", opts.TURNServer)
	set("turn_username", opts.TURNUser)
	set("turn_password", opts.TURNPass)
	set("username", opts.Username)
	set("chat_log", opts.ChatLogPath)

	if opts.ForceRelay {
		v.Set("force_relay", true)
	}
	if opts.NoAudio {
		v.Set("audio_on", false)
	}
	if opts.NoVideo {
		v.Set("video_on", false)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/room/%s", c.Domain, roomID)
}

// GetRecordingURL returns the download URL of a recording artifact
func (c *Config) GetRecordingURL(fileName string) string {
	return fmt.Sprintf("%s/%s", c.RecordingsURL, fileName)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
