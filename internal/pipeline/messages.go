package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mediabot/internal/download"
	"mediabot/internal/services"
	"mediabot/internal/textutil"
)

const progressBarWidth = 10

// UserMessage maps a job error to the reply shown to the requester. It is the
// only place where failures become user text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		quota    *services.QuotaError
		duration *services.DurationLimitError
		size     *services.SizeLimitError
		profile  *ProfileUnavailableError
	)
	switch {
	case errors.As(err, &quota):
		return fmt.Sprintf("You have used all %d free downloads for today. "+
			"Send /bonus <link> to spend a bonus download, or subscribe for unlimited downloads.", quota.Limit)
	case errors.Is(err, services.ErrQuotaExceeded):
		return "You have reached your daily download limit. Send /bonus <link> to spend a bonus download."
	case errors.Is(err, services.ErrBlockedContent):
		return "This content is blocked and cannot be downloaded."
	case errors.As(err, &duration):
		return fmt.Sprintf("This video is longer than %s, the limit for free accounts. Subscribe to download longer videos.",
			textutil.FormatDuration(duration.Limit))
	case errors.Is(err, services.ErrDurationExceeded):
		return "This video is too long for a free account."
	case errors.As(err, &size):
		return fmt.Sprintf("The file is %s, which is over the %s upload limit.",
			textutil.FormatSize(size.Size), textutil.FormatSize(size.Limit))
	case errors.Is(err, services.ErrSizeExceeded):
		return "The file is too large to send."
	case errors.Is(err, services.ErrInsufficientBonus):
		return "You have no bonus downloads left. Invite friends with your referral link to earn more."
	case errors.As(err, &profile):
		return fmt.Sprintf("Quality %q is not available for this link. Choose one of: %s.",
			profile.Requested, strings.Join(profile.Available, ", "))
	case errors.Is(err, services.ErrUnsupportedSource):
		return "This link is not supported."
	case errors.Is(err, services.ErrPrivateOrUnavailable):
		return "This video is private or unavailable."
	case errors.Is(err, services.ErrTimeout):
		return "The download took too long and was stopped. Please try again later."
	case errors.Is(err, services.ErrDeliveryFailure):
		return "The file could not be sent. Please try again."
	default:
		return "Something went wrong while processing your link. Please try again later."
	}
}

// ProgressText renders a status message for a download sample.
func ProgressText(title string, p download.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloading: %s\n", displayTitle(title))
	filled := int(p.Percent / 100 * progressBarWidth)
	filled = min(max(filled, 0), progressBarWidth)
	fmt.Fprintf(&b, "[%s%s] %.0f%%", strings.Repeat("#", filled), strings.Repeat("-", progressBarWidth-filled), p.Percent)

	details := make([]string, 0, 3)
	if p.TotalBytes > 0 {
		details = append(details, fmt.Sprintf("%s / %s", textutil.FormatSize(p.DownloadedBytes), textutil.FormatSize(p.TotalBytes)))
	}
	if p.Rate > 0 {
		details = append(details, textutil.FormatSize(int64(p.Rate))+"/s")
	}
	if p.ETA > 0 {
		details = append(details, "ETA "+textutil.FormatDuration(int(p.ETA.Seconds())))
	}
	if len(details) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(details, " | "))
	}
	return b.String()
}

// completionText is the follow-up sent after a successful delivery. Entitled
// and admin accounts get no follow-up.
func completionText(free bool, remaining int, usedBonus bool, bonusLeft int) string {
	switch {
	case usedBonus:
		return fmt.Sprintf("Used one bonus download. %d bonus %s left.",
			bonusLeft, textutil.Plural(bonusLeft, "download", "downloads"))
	case free:
		return fmt.Sprintf("Done! %d %s remaining today.",
			remaining, textutil.Plural(remaining, "download", "downloads"))
	default:
		return ""
	}
}

func displayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "your video"
	}
	if utf8.RuneCountInString(title) > 80 {
		return string([]rune(title)[:79]) + "…"
	}
	return title
}
