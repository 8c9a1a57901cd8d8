package config

const (
	defaultConfigPath             = "~/.config/mediabot/config.toml"
	defaultWorkDir                = "~/.local/share/mediabot/work"
	defaultDataDir                = "~/.local/share/mediabot"
	defaultLogDir                 = "~/.local/share/mediabot/logs"
	defaultTelegramAPITimeout     = 60
	defaultEditsPerSecond         = 1.0
	defaultDailyFreeLimit         = 5
	defaultMaxFreeDurationSeconds = 300
	defaultMaxPayloadBytes        = 2 << 30
	defaultNewAccountBonus        = 50
	defaultReferralRewardAt       = 10
	defaultReferralRewardBonus    = 10
	defaultSubscriptionDays       = 30
	defaultYTDLPBinary            = "yt-dlp"
	defaultFormat                 = "best[ext=mp4][height<=720]/best[ext=mp4]/best"
	defaultMergeFormat            = "mp4"
	defaultResolveTimeout         = 60
	defaultFetchTimeout           = 1800
	defaultWorkers                = 3
	defaultProgressInterval       = 3.0
	defaultProgressDelta          = 5.0
	defaultWatermarkPosition      = "bottom_right"
	defaultWatermarkScaleWidth    = 150
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultWatermarkTimeout       = 900
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultStaleJobHours          = 6
)

func defaultMilestones() []Milestone {
	return []Milestone{
		{Referrals: 25, Plan: "vip", Days: 7},
		{Referrals: 50, Plan: "vip", Days: 30},
		{Referrals: 100, Plan: "vip", Lifetime: true},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Telegram: Telegram{
			APITimeout:     defaultTelegramAPITimeout,
			EditsPerSecond: defaultEditsPerSecond,
		},
		Quota: Quota{
			DailyFreeLimit:         defaultDailyFreeLimit,
			MaxFreeDurationSeconds: defaultMaxFreeDurationSeconds,
			MaxPayloadBytes:        defaultMaxPayloadBytes,
			NewAccountBonus:        defaultNewAccountBonus,
		},
		Referral: Referral{
			RewardAtDownloads: defaultReferralRewardAt,
			RewardBonus:       defaultReferralRewardBonus,
			Milestones:        defaultMilestones(),
		},
		Subscription: Subscription{
			DefaultDays: defaultSubscriptionDays,
		},
		Downloader: Downloader{
			YTDLPBinary:    defaultYTDLPBinary,
			Format:         defaultFormat,
			MergeFormat:    defaultMergeFormat,
			ResolveTimeout: defaultResolveTimeout,
			FetchTimeout:   defaultFetchTimeout,
			Workers:        defaultWorkers,
		},
		Progress: Progress{
			MinIntervalSeconds: defaultProgressInterval,
			MinDeltaPercent:    defaultProgressDelta,
		},
		Watermark: Watermark{
			Position:      defaultWatermarkPosition,
			ScaleWidth:    defaultWatermarkScaleWidth,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Timeout:       defaultWatermarkTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Maintenance: Maintenance{
			StaleJobHours: defaultStaleJobHours,
		},
	}
}
