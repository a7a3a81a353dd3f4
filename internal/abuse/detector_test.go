package abuse

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"membergate/api/internal/abuse/domain"
)

type fakeBanRepo struct {
	mu      sync.Mutex
	upserts []*domain.IPBan
	active  []*domain.IPBan
}

func (f *fakeBanRepo) Upsert(_ context.Context, ban *domain.IPBan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, ban)
	return nil
}

func (f *fakeBanRepo) ListActive(_ context.Context) ([]*domain.IPBan, error) {
	return f.active, nil
}

func (f *fakeBanRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeBanRepo) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDetector(repo *fakeBanRepo, now *time.Time) *Detector {
	return NewDetector(DefaultConfig(), repo, quietLogger()).
		WithNow(func() time.Time { return *now })
}

func TestStrikeThresholdBans(t *testing.T) {
	repo := &fakeBanRepo{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := newTestDetector(repo, &now)

	for i := 0; i < 4; i++ {
		if d.RecordStrike("203.0.113.9", "/wp-login.php") {
			t.Fatalf("strike %d banned early", i+1)
		}
		if d.IsBanned("203.0.113.9") {
			t.Fatalf("banned after %d strikes", i+1)
		}
	}

	if !d.RecordStrike("203.0.113.9", "/wp-login.php") {
		t.Fatal("5th strike did not ban")
	}
	if !d.IsBanned("203.0.113.9") {
		t.Fatal("IsBanned false after threshold")
	}
}

func TestStrikesAreIsolatedPerAddress(t *testing.T) {
	repo := &fakeBanRepo{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := newTestDetector(repo, &now)

	// 5 strikes split across two addresses never ban either.
	for i := 0; i < 3; i++ {
		d.RecordStrike("203.0.113.9", "/wp-login.php")
	}
	for i := 0; i < 2; i++ {
		d.RecordStrike("198.51.100.4", "/wp-login.php")
	}
	if d.IsBanned("203.0.113.9") || d.IsBanned("198.51.100.4") {
		t.Fatal("address banned from split strikes")
	}
}

func TestStrikeWindowResets(t *testing.T) {
	repo := &fakeBanRepo{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := newTestDetector(repo, &now)

	for i := 0; i < 4; i++ {
		d.RecordStrike("203.0.113.9", "/wp-login.php")
	}

	// Window elapses; the next strike starts a fresh count.
	now = now.Add(2 * time.Hour)
	if d.RecordStrike("203.0.113.9", "/wp-login.php") {
		t.Fatal("strike after stale window banned")
	}
	if d.IsBanned("203.0.113.9") {
		t.Fatal("banned despite window reset")
	}
}

func TestBanExpires(t *testing.T) {
	repo := &fakeBanRepo{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.BanDurationSecs = 1
	d := NewDetector(cfg, repo, quietLogger()).
		WithNow(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		d.RecordStrike("203.0.113.9", "/wp-login.php")
	}
	if !d.IsBanned("203.0.113.9") {
		t.Fatal("not banned after threshold")
	}

	now = now.Add(2 * time.Second)
	if d.IsBanned("203.0.113.9") {
		t.Fatal("still banned after expiry")
	}

	d.CleanupExpired()
	if d.IsBanned("203.0.113.9") {
		t.Fatal("banned again after cleanup")
	}
}

func TestBanPersistedAsynchronously(t *testing.T) {
	repo := &fakeBanRepo{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d := newTestDetector(repo, &now)

	for i := 0; i < 5; i++ {
		d.RecordStrike("203.0.113.9", "/wp-login.php")
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.upsertCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if repo.upsertCount() != 1 {
		t.Fatalf("upserts = %d, want 1", repo.upsertCount())
	}
	repo.mu.Lock()
	ban := repo.upserts[0]
	repo.mu.Unlock()
	if ban.IPAddress != "203.0.113.9" || ban.Strikes != 5 {
		t.Fatalf("persisted ban = %+v", ban)
	}
}

func TestLoadBansEnforcedAtStartup(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo := &fakeBanRepo{active: []*domain.IPBan{
		{IPAddress: "203.0.113.9", Reason: "scanner", ExpiresAt: now.Add(time.Hour)},
	}}
	d := newTestDetector(repo, &now)

	if err := d.LoadBans(context.Background()); err != nil {
		t.Fatalf("LoadBans: %v", err)
	}
	if !d.IsBanned("203.0.113.9") {
		t.Fatal("loaded ban not enforced")
	}
	if d.IsBanned("198.51.100.4") {
		t.Fatal("unrelated address banned")
	}
}
