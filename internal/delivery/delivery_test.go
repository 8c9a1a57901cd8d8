package delivery_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/delivery"
	"mediabot/internal/ledger"
	"mediabot/internal/logging"
	"mediabot/internal/messaging"
	"mediabot/internal/messaging/messagingtest"
	"mediabot/internal/services"
	"mediabot/internal/testsupport"
)

func newDeliverer(t *testing.T, maxBytes int64) (*delivery.Deliverer, *messagingtest.Recorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Quota.MaxPayloadBytes = maxBytes
	cfg.Telegram.AuditChannel = "-1001"
	cfg.Telegram.AuditMediaChannel = "@audit_media"
	rec := messagingtest.New()
	return delivery.New(rec, cfg, delivery.WithLogger(logging.NewNop())), rec
}

func artifact(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Clip.mp4")
	testsupport.WriteFile(t, path, size)
	return path
}

func baseRequest(path string) delivery.Request {
	return delivery.Request{
		JobID:           "job-1",
		Chat:            messaging.Chat(42),
		Requester:       delivery.Requester{ID: 42, Username: "alice"},
		Path:            path,
		SourceURL:       "https://video.example/watch?v=1",
		Title:           "Clip",
		DurationSeconds: 205,
		Badge:           delivery.BadgeFree,
	}
}

func TestDeliverUploadsAndAudits(t *testing.T) {
	d, rec := newDeliverer(t, 1<<20)
	res, err := d.Deliver(context.Background(), baseRequest(artifact(t, 2048)))
	require.NoError(t, err)

	assert.Equal(t, int64(2048), res.SizeBytes)
	assert.True(t, res.Forwarded)
	assert.True(t, res.Logged)

	uploads := rec.CallsOf(messagingtest.OpSendMedia)
	require.Len(t, uploads, 1)
	assert.Equal(t, messaging.MediaVideo, uploads[0].Media.Kind)
	assert.Equal(t, "Clip\nDuration: 03:25 | Size: 2.0 KiB\nPlan: FREE", uploads[0].Media.Caption)

	forwards := rec.CallsOf(messagingtest.OpForward)
	require.Len(t, forwards, 1)
	assert.Equal(t, "@audit_media", forwards[0].To.String())
	assert.Equal(t, res.Message, forwards[0].Ref)

	logs := rec.CallsOf(messagingtest.OpSend)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(-1001), logs[0].To.ID)
	assert.Contains(t, logs[0].Text, "@alice (42)")
	assert.Contains(t, logs[0].Text, "https://video.example/watch?v=1")
}

func TestDeliverRejectsOversizedArtifactWithoutUpload(t *testing.T) {
	d, rec := newDeliverer(t, 1024)
	res, err := d.Deliver(context.Background(), baseRequest(artifact(t, 4096)))

	require.ErrorIs(t, err, services.ErrSizeExceeded)
	var sizeErr *services.SizeLimitError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, int64(1024), sizeErr.Limit)
	assert.Equal(t, int64(4096), res.SizeBytes)
	assert.Empty(t, rec.Calls())
}

func TestDeliverUploadFailureIsTerminal(t *testing.T) {
	d, rec := newDeliverer(t, 1<<20)
	rec.Fail(messagingtest.OpSendMedia, nil)

	_, err := d.Deliver(context.Background(), baseRequest(artifact(t, 10)))
	require.ErrorIs(t, err, services.ErrDeliveryFailure)
	assert.Empty(t, rec.CallsOf(messagingtest.OpForward))
	assert.Empty(t, rec.CallsOf(messagingtest.OpSend))
}

func TestAuditFailuresAreIndependent(t *testing.T) {
	d, rec := newDeliverer(t, 1<<20)
	rec.Fail(messagingtest.OpForward, nil)

	res, err := d.Deliver(context.Background(), baseRequest(artifact(t, 10)))
	require.NoError(t, err)
	assert.False(t, res.Forwarded)
	assert.True(t, res.Logged)

	d, rec = newDeliverer(t, 1<<20)
	audit, _ := messaging.ParseChatRef("-1001")
	rec.FailTo(audit, nil)

	res, err = d.Deliver(context.Background(), baseRequest(artifact(t, 10)))
	require.NoError(t, err)
	assert.True(t, res.Forwarded)
	assert.False(t, res.Logged)
}

func TestDeliverAudioUsesAudioUpload(t *testing.T) {
	d, rec := newDeliverer(t, 1<<20)
	req := baseRequest(artifact(t, 10))
	req.AudioOnly = true

	_, err := d.Deliver(context.Background(), req)
	require.NoError(t, err)
	uploads := rec.CallsOf(messagingtest.OpSendMedia)
	require.Len(t, uploads, 1)
	assert.Equal(t, messaging.MediaAudio, uploads[0].Media.Kind)
}

func TestDeliverWithoutAuditChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := messagingtest.New()
	d := delivery.New(rec, cfg)

	res, err := d.Deliver(context.Background(), baseRequest(artifact(t, 10)))
	require.NoError(t, err)
	assert.False(t, res.Forwarded)
	assert.False(t, res.Logged)
	assert.Len(t, rec.Calls(), 1)
}

func TestDeliverMissingArtifact(t *testing.T) {
	d, rec := newDeliverer(t, 1<<20)
	_, err := d.Deliver(context.Background(), baseRequest(filepath.Join(t.TempDir(), "missing.mp4")))
	require.ErrorIs(t, err, services.ErrDeliveryFailure)
	assert.Empty(t, rec.Calls())
}

func TestCaptionTruncatesLongTitles(t *testing.T) {
	req := baseRequest("x")
	req.Title = strings.Repeat("a", 2000)
	req.Badge = delivery.BadgeVIP
	caption := delivery.Caption(req, 1)
	assert.LessOrEqual(t, utf8.RuneCountInString(caption), 1024)
	assert.True(t, strings.HasSuffix(caption, "Plan: VIP"))
	assert.Contains(t, caption, "…")
}

func TestBadgeFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.Equal(t, delivery.BadgeAdmin, delivery.BadgeFor(ledger.Account{}, true, now))
	assert.Equal(t, delivery.BadgeVIP, delivery.BadgeFor(ledger.Account{LifetimeVIP: true}, false, now))
	assert.Equal(t, delivery.BadgeVIP, delivery.BadgeFor(ledger.Account{Plan: ledger.PlanVIP, SubscriptionExpiry: &future}, false, now))
	assert.Equal(t, delivery.BadgePro, delivery.BadgeFor(ledger.Account{Plan: ledger.PlanPro, SubscriptionExpiry: &future}, false, now))
	assert.Equal(t, delivery.BadgeFree, delivery.BadgeFor(ledger.Account{Plan: ledger.PlanPro, SubscriptionExpiry: &past}, false, now))
	assert.Equal(t, delivery.BadgeFree, delivery.BadgeFor(ledger.Account{Plan: ledger.PlanFree}, false, now))
}
