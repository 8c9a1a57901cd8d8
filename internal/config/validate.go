package config

import (
	"errors"
	"fmt"
	"strings"
)

var watermarkPositions = map[string]struct{}{
	"top_left":     {},
	"top_right":    {},
	"bottom_left":  {},
	"bottom_right": {},
}

var subscriptionPlans = map[string]struct{}{
	"pro": {},
	"vip": {},
}

// Validate ensures the configuration is usable. The Telegram token is not
// required here so offline CLI commands keep working; the daemon checks it.
func (c *Config) Validate() error {
	if err := c.validateQuota(); err != nil {
		return err
	}
	if err := c.validateReferral(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateWatermark(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Subscription.DefaultDays <= 0 {
		return errors.New("subscription.default_days must be positive")
	}
	if c.Telegram.EditsPerSecond < 0 {
		return errors.New("telegram.edits_per_second must be non-negative")
	}
	if c.Telegram.MirrorText && strings.TrimSpace(c.Telegram.AuditChannel) == "" {
		return errors.New("telegram.mirror_text requires telegram.audit_channel")
	}
	return nil
}

// RequireTelegram reports an error when the bot token is missing.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.token is required. Set MEDIABOT_TELEGRAM_TOKEN env var or edit %s (create with 'mediabot config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateQuota() error {
	if c.Quota.DailyFreeLimit <= 0 {
		return errors.New("quota.daily_free_limit must be positive")
	}
	if c.Quota.MaxFreeDurationSeconds <= 0 {
		return errors.New("quota.max_free_duration_seconds must be positive")
	}
	if c.Quota.MaxPayloadBytes <= 0 {
		return errors.New("quota.max_payload_bytes must be positive")
	}
	if c.Quota.NewAccountBonus < 0 {
		return errors.New("quota.new_account_bonus must be non-negative")
	}
	return nil
}

func (c *Config) validateReferral() error {
	if c.Referral.RewardAtDownloads <= 0 {
		return errors.New("referral.reward_at_downloads must be positive")
	}
	if c.Referral.RewardBonus < 0 {
		return errors.New("referral.reward_bonus must be non-negative")
	}
	seen := make(map[int]struct{}, len(c.Referral.Milestones))
	for i, m := range c.Referral.Milestones {
		if m.Referrals <= 0 {
			return fmt.Errorf("referral.milestones[%d].referrals must be positive", i)
		}
		if _, ok := seen[m.Referrals]; ok {
			return fmt.Errorf("referral.milestones[%d] duplicates referrals=%d", i, m.Referrals)
		}
		seen[m.Referrals] = struct{}{}
		if _, ok := subscriptionPlans[strings.ToLower(strings.TrimSpace(m.Plan))]; !ok {
			return fmt.Errorf("referral.milestones[%d].plan must be pro or vip", i)
		}
		if !m.Lifetime && m.Days <= 0 {
			return fmt.Errorf("referral.milestones[%d].days must be positive unless lifetime", i)
		}
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if c.Downloader.ResolveTimeout <= 0 {
		return errors.New("downloader.resolve_timeout must be positive")
	}
	if c.Downloader.FetchTimeout <= 0 {
		return errors.New("downloader.fetch_timeout must be positive")
	}
	if c.Downloader.Workers <= 0 {
		return errors.New("downloader.workers must be positive")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.MinIntervalSeconds <= 0 {
		return errors.New("progress.min_interval_seconds must be positive")
	}
	if c.Progress.MinDeltaPercent <= 0 || c.Progress.MinDeltaPercent > 100 {
		return errors.New("progress.min_delta_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateWatermark() error {
	if _, ok := watermarkPositions[c.Watermark.Position]; !ok {
		return fmt.Errorf("watermark.position %q is not one of top_left, top_right, bottom_left, bottom_right", c.Watermark.Position)
	}
	if c.Watermark.ScaleWidth <= 0 {
		return errors.New("watermark.scale_width must be positive")
	}
	if c.Watermark.Timeout <= 0 {
		return errors.New("watermark.timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}
