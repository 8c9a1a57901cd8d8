package deps

import (
	"strings"

	"mediabot/internal/config"
)

// ForConfig lists the binaries the configured pipeline runs. ffmpeg is only
// required when yt-dlp must merge streams or a watermark asset is set;
// ffprobe only narrows the watermark stage and is always optional.
func ForConfig(cfg *config.Config) []Requirement {
	ytdlp := strings.TrimSpace(cfg.Downloader.YTDLPBinary)
	if ytdlp == "" {
		ytdlp = "yt-dlp"
	}
	ffmpeg := strings.TrimSpace(cfg.Watermark.FFmpegBinary)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := strings.TrimSpace(cfg.Watermark.FFprobeBinary)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	needsFFmpeg := strings.TrimSpace(cfg.Downloader.MergeFormat) != "" || strings.TrimSpace(cfg.Watermark.AssetPath) != ""

	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     ytdlp,
			Description: "Required for metadata extraction and downloads",
		},
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Merges separate audio/video streams and applies the watermark",
			Optional:    !needsFFmpeg,
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Skips the watermark for files without a video stream",
			Optional:    true,
		},
	}
}
