package extract

import (
	"fmt"
	"strings"
)

// Profile names understood by ProfileByName in addition to "<height>p".
const (
	ProfileBest  = "best"
	ProfileAudio = "audio"
)

// audioFormat selects an audio-only stream, preferring m4a for player support.
const audioFormat = "bestaudio[ext=m4a]/bestaudio/best"

var ladder = []int{1080, 720, 480, 360}

// QualityProfile is a named yt-dlp format selector.
type QualityProfile struct {
	Name      string
	Height    int
	Format    string
	AudioOnly bool
}

// Metadata describes a resolved media item.
type Metadata struct {
	ID              string
	URL             string
	Extractor       string
	Title           string
	DurationSeconds int
	ApproxSizeBytes int64
	Width           int
	Height          int
	AudioOnly       bool
	Profiles        []QualityProfile
}

// ProfileByName returns the named profile, or false when the item does not
// offer it. Matching is case-insensitive.
func (m Metadata) ProfileByName(name string) (QualityProfile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range m.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return QualityProfile{}, false
}

// ProfileNames lists the available profile names in display order.
func (m Metadata) ProfileNames() []string {
	names := make([]string, 0, len(m.Profiles))
	for _, p := range m.Profiles {
		names = append(names, p.Name)
	}
	return names
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// hasVideo treats an unknown codec as video; yt-dlp marks audio-only formats
// with vcodec "none".
func (f rawFormat) hasVideo() bool {
	return f.VCodec != "none"
}

func (f rawFormat) size() int64 {
	if f.Filesize > 0 {
		return int64(f.Filesize)
	}
	return int64(f.FilesizeApprox)
}

type rawInfo struct {
	ID             string      `json:"id"`
	Type           string      `json:"_type"`
	WebpageURL     string      `json:"webpage_url"`
	Extractor      string      `json:"extractor"`
	ExtractorKey   string      `json:"extractor_key"`
	Title          string      `json:"title"`
	Duration       float64     `json:"duration"`
	Filesize       float64     `json:"filesize"`
	FilesizeApprox float64     `json:"filesize_approx"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	VCodec         string      `json:"vcodec"`
	Formats        []rawFormat `json:"formats"`
}

func (r rawInfo) toMetadata(defaultFormat string) Metadata {
	meta := Metadata{
		ID:              r.ID,
		URL:             r.WebpageURL,
		Extractor:       strings.ToLower(firstNonEmpty(r.ExtractorKey, r.Extractor)),
		Title:           strings.TrimSpace(r.Title),
		DurationSeconds: int(r.Duration + 0.5),
		Width:           r.Width,
		Height:          r.Height,
	}

	switch {
	case r.Filesize > 0:
		meta.ApproxSizeBytes = int64(r.Filesize)
	case r.FilesizeApprox > 0:
		meta.ApproxSizeBytes = int64(r.FilesizeApprox)
	default:
		for _, f := range r.Formats {
			if s := f.size(); s > meta.ApproxSizeBytes {
				meta.ApproxSizeBytes = s
			}
		}
	}

	maxHeight := r.Height
	for _, f := range r.Formats {
		if f.hasVideo() && f.Height > maxHeight {
			maxHeight = f.Height
		}
	}
	meta.AudioOnly = r.audioOnly()
	if meta.Height == 0 {
		meta.Height = maxHeight
	}
	meta.Profiles = buildProfiles(defaultFormat, maxHeight, meta.AudioOnly)
	return meta
}

func (r rawInfo) audioOnly() bool {
	if len(r.Formats) == 0 {
		return r.VCodec == "none"
	}
	for _, f := range r.Formats {
		if f.hasVideo() {
			return false
		}
	}
	return true
}

func buildProfiles(defaultFormat string, maxHeight int, audioOnly bool) []QualityProfile {
	if audioOnly {
		return []QualityProfile{
			{Name: ProfileBest, Format: audioFormat, AudioOnly: true},
			{Name: ProfileAudio, Format: audioFormat, AudioOnly: true},
		}
	}
	profiles := []QualityProfile{{Name: ProfileBest, Height: maxHeight, Format: defaultFormat}}
	for _, h := range ladder {
		if maxHeight < h {
			continue
		}
		profiles = append(profiles, QualityProfile{
			Name:   fmt.Sprintf("%dp", h),
			Height: h,
			Format: fmt.Sprintf("best[ext=mp4][height<=%d]/bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h, h),
		})
	}
	return append(profiles, QualityProfile{Name: ProfileAudio, Format: audioFormat, AudioOnly: true})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
