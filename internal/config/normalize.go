package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTelegram(); err != nil {
		return err
	}
	c.normalizePolicy()
	c.normalizeDownloader()
	if err := c.normalizeWatermark(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() error {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	if c.Telegram.Token == "" {
		if value, ok := os.LookupEnv("MEDIABOT_TELEGRAM_TOKEN"); ok {
			c.Telegram.Token = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("BOT_TOKEN"); ok {
			c.Telegram.Token = strings.TrimSpace(value)
		}
	}
	if len(c.Telegram.AdminIDs) == 0 {
		if value, ok := os.LookupEnv("ADMIN_IDS"); ok {
			ids, err := parseIDList(value)
			if err != nil {
				return fmt.Errorf("ADMIN_IDS: %w", err)
			}
			c.Telegram.AdminIDs = ids
		}
	}
	c.Telegram.AuditChannel = strings.TrimSpace(c.Telegram.AuditChannel)
	if c.Telegram.AuditChannel == "" {
		if value, ok := os.LookupEnv("AUDIT_CHANNEL_ID"); ok {
			c.Telegram.AuditChannel = strings.TrimSpace(value)
		}
	}
	c.Telegram.AuditMediaChannel = strings.TrimSpace(c.Telegram.AuditMediaChannel)
	if c.Telegram.AuditMediaChannel == "" {
		if value, ok := os.LookupEnv("AUDIT_MEDIA_CHANNEL_ID"); ok {
			c.Telegram.AuditMediaChannel = strings.TrimSpace(value)
		}
	}
	if c.Telegram.APITimeout <= 0 {
		c.Telegram.APITimeout = defaultTelegramAPITimeout
	}
	return nil
}

func (c *Config) normalizePolicy() {
	c.Policy.BlockedDomains = normalizeList(c.Policy.BlockedDomains, func(value string) string {
		value = strings.ToLower(value)
		value = strings.TrimPrefix(value, "*.")
		value = strings.TrimPrefix(value, "www.")
		return strings.TrimSuffix(value, ".")
	})
	c.Policy.BlockedKeywords = normalizeList(c.Policy.BlockedKeywords, strings.ToLower)
}

func (c *Config) normalizeDownloader() {
	c.Downloader.YTDLPBinary = strings.TrimSpace(c.Downloader.YTDLPBinary)
	if c.Downloader.YTDLPBinary == "" {
		c.Downloader.YTDLPBinary = defaultYTDLPBinary
	}
	c.Downloader.Format = strings.TrimSpace(c.Downloader.Format)
	if c.Downloader.Format == "" {
		c.Downloader.Format = defaultFormat
	}
	c.Downloader.MergeFormat = strings.ToLower(strings.TrimSpace(c.Downloader.MergeFormat))
	if c.Downloader.MergeFormat == "" {
		c.Downloader.MergeFormat = defaultMergeFormat
	}
}

func (c *Config) normalizeWatermark() error {
	c.Watermark.AssetPath = strings.TrimSpace(c.Watermark.AssetPath)
	if c.Watermark.AssetPath != "" {
		expanded, err := expandPath(c.Watermark.AssetPath)
		if err != nil {
			return fmt.Errorf("watermark.asset_path: %w", err)
		}
		c.Watermark.AssetPath = expanded
	}
	c.Watermark.Position = strings.ToLower(strings.TrimSpace(c.Watermark.Position))
	if c.Watermark.Position == "" {
		c.Watermark.Position = defaultWatermarkPosition
	}
	if strings.TrimSpace(c.Watermark.FFmpegBinary) == "" {
		c.Watermark.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Watermark.FFprobeBinary) == "" {
		c.Watermark.FFprobeBinary = defaultFFprobeBinary
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values []string, transform func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if transform != nil {
			value = transform(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
