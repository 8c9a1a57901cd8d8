package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Telegram contains bot transport and audit destinations.
type Telegram struct {
	Token             string  `toml:"token"`
	AdminIDs          []int64 `toml:"admin_ids"`
	AuditChannel      string  `toml:"audit_channel"`
	AuditMediaChannel string  `toml:"audit_media_channel"`
	APITimeout        int     `toml:"api_timeout"`
	EditsPerSecond    float64 `toml:"edits_per_second"`
	MirrorText        bool    `toml:"mirror_text"`
}

// Quota contains the free-tier limits.
type Quota struct {
	DailyFreeLimit         int   `toml:"daily_free_limit"`
	MaxFreeDurationSeconds int   `toml:"max_free_duration_seconds"`
	MaxPayloadBytes        int64 `toml:"max_payload_bytes"`
	NewAccountBonus        int   `toml:"new_account_bonus"`
}

// Milestone grants a subscription once an account reaches a referral count.
type Milestone struct {
	Referrals int    `toml:"referrals"`
	Plan      string `toml:"plan"`
	Days      int    `toml:"days"`
	Lifetime  bool   `toml:"lifetime"`
}

// Referral contains referral reward settings.
type Referral struct {
	RewardAtDownloads int         `toml:"reward_at_downloads"`
	RewardBonus       int         `toml:"reward_bonus"`
	Milestones        []Milestone `toml:"milestones"`
}

// Subscription contains paid plan settings.
type Subscription struct {
	DefaultDays int `toml:"default_days"`
}

// Policy contains the content filter.
type Policy struct {
	BlockedDomains  []string `toml:"blocked_domains"`
	BlockedKeywords []string `toml:"blocked_keywords"`
}

// Downloader contains yt-dlp settings and the fetch worker pool size.
type Downloader struct {
	YTDLPBinary    string `toml:"ytdlp_binary"`
	Format         string `toml:"format"`
	MergeFormat    string `toml:"merge_format"`
	ResolveTimeout int    `toml:"resolve_timeout"`
	FetchTimeout   int    `toml:"fetch_timeout"`
	Workers        int    `toml:"workers"`
}

// Progress contains the dual gate used to throttle progress edits.
type Progress struct {
	MinIntervalSeconds float64 `toml:"min_interval_seconds"`
	MinDeltaPercent    float64 `toml:"min_delta_percent"`
}

// Watermark contains overlay settings. An empty AssetPath disables the stage.
type Watermark struct {
	AssetPath     string `toml:"asset_path"`
	Position      string `toml:"position"`
	ScaleWidth    int    `toml:"scale_width"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Timeout       int    `toml:"timeout"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Maintenance contains housekeeping intervals.
type Maintenance struct {
	StaleJobHours int `toml:"stale_job_hours"`
}

// Config encapsulates all configuration values for mediabot.
//
// Configuration sections by subsystem:
//   - Paths: job scratch space, database and logs
//   - Telegram: bot token, admins, audit channels
//   - Quota, Referral, Subscription: ledger rules
//   - Policy: blocked domains and keywords
//   - Downloader, Progress: extraction, fetch and progress throttling
//   - Watermark: ffmpeg overlay for free accounts
//   - Notifications: ntfy operator alerts
//   - Logging, Maintenance: operational knobs
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Quota         Quota         `toml:"quota"`
	Referral      Referral      `toml:"referral"`
	Subscription  Subscription  `toml:"subscription"`
	Policy        Policy        `toml:"policy"`
	Downloader    Downloader    `toml:"downloader"`
	Progress      Progress      `toml:"progress"`
	Watermark     Watermark     `toml:"watermark"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Maintenance   Maintenance   `toml:"maintenance"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediabot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mediabot.db")
}

// IsAdmin reports whether the account id is listed in telegram.admin_ids.
func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.Telegram.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// ResolveTimeout returns the metadata extraction timeout.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Downloader.ResolveTimeout) * time.Second
}

// FetchTimeout returns the payload download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Downloader.FetchTimeout) * time.Second
}

// ProgressInterval returns the minimum spacing between progress notifications.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.MinIntervalSeconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
