package abuse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"membergate/api/internal/abuse/domain"
	"membergate/api/internal/abuse/repository"
)

const persistTimeout = 5 * time.Second

// Config controls strike accumulation and ban duration.
type Config struct {
	Enabled         bool
	Threshold       int
	WindowSecs      int64
	BanDurationSecs int64
}

// DefaultConfig returns the production defaults: ban after 5 suspicious
// requests within an hour, for a day.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Threshold:       5,
		WindowSecs:      3600,
		BanDurationSecs: 86400,
	}
}

type banEntry struct {
	reason    string
	expiresAt time.Time
}

type strikeEntry struct {
	count     int
	firstSeen time.Time
	lastPath  string
}

// Detector tracks suspicious requests per client address and bans addresses
// that cross the strike threshold. All lookups hit in-memory maps; the
// repository is only written asynchronously when a ban fires, and read once
// at startup via LoadBans.
type Detector struct {
	mu      sync.RWMutex
	banned  map[string]banEntry
	strikes map[string]strikeEntry

	patterns *SuspiciousPatterns
	cfg      Config
	repo     repository.Repository
	log      *logrus.Logger

	now func() time.Time
}

// NewDetector builds a detector with the default pattern set.
func NewDetector(cfg Config, repo repository.Repository, log *logrus.Logger) *Detector {
	return &Detector{
		banned:   make(map[string]banEntry),
		strikes:  make(map[string]strikeEntry),
		patterns: DefaultPatterns(),
		cfg:      cfg,
		repo:     repo,
		log:      log,
		now:      time.Now,
	}
}

// WithNow overrides the clock. Test use only.
func (d *Detector) WithNow(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Enabled reports whether the detector should be consulted at all.
func (d *Detector) Enabled() bool {
	return d.cfg.Enabled
}

// IsBanned reports whether the address is currently banned. Expired entries
// read as not banned; the cleanup sweep removes them later.
func (d *Detector) IsBanned(ip string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.banned[ip]
	return ok && d.now().Before(entry.expiresAt)
}

// IsSuspicious reports whether the path matches the suspicious rule set.
func (d *Detector) IsSuspicious(path string) bool {
	return d.patterns.Matches(path)
}

// RecordStrike counts one suspicious request from the address and returns
// true if this strike crossed the threshold and newly banned it. The ban
// takes effect in memory before the database write, which happens on a
// background goroutine so the request path never waits on the store.
func (d *Detector) RecordStrike(ip, path string) bool {
	now := d.now()
	window := time.Duration(d.cfg.WindowSecs) * time.Second

	d.mu.Lock()
	entry := d.strikes[ip]
	if entry.count == 0 {
		entry.firstSeen = now
	}
	// Stale window: start counting over.
	if now.Sub(entry.firstSeen) > window {
		entry.count = 0
		entry.firstSeen = now
	}
	entry.count++
	entry.lastPath = path

	if entry.count < d.cfg.Threshold {
		d.strikes[ip] = entry
		d.mu.Unlock()
		return false
	}

	reason := fmt.Sprintf("auto-banned after %d suspicious requests (last: %s)", entry.count, path)
	expiresAt := now.Add(time.Duration(d.cfg.BanDurationSecs) * time.Second)
	delete(d.strikes, ip)
	d.banned[ip] = banEntry{reason: reason, expiresAt: expiresAt}
	d.mu.Unlock()

	go d.persistBan(ip, reason, entry.count, expiresAt)

	d.log.WithFields(logrus.Fields{"ip": ip, "reason": reason}).Warn("ip auto-banned")
	return true
}

func (d *Detector) persistBan(ip, reason string, strikes int, expiresAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := d.repo.Upsert(ctx, &domain.IPBan{
		IPAddress: ip,
		Reason:    reason,
		Strikes:   strikes,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		d.log.WithError(err).WithField("ip", ip).Error("failed to persist ip ban")
	}
}

// CleanupExpired drops lapsed bans and stale strike windows from memory.
func (d *Detector) CleanupExpired() {
	now := d.now()
	window := time.Duration(d.cfg.WindowSecs) * time.Second

	d.mu.Lock()
	defer d.mu.Unlock()
	for ip, entry := range d.banned {
		if !entry.expiresAt.After(now) {
			delete(d.banned, ip)
		}
	}
	for ip, entry := range d.strikes {
		if now.Sub(entry.firstSeen) > window {
			delete(d.strikes, ip)
		}
	}
}

// LoadBans populates the in-memory ban map from the store. Called once at
// startup so bans survive restarts.
func (d *Detector) LoadBans(ctx context.Context) error {
	bans, err := d.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	for _, b := range bans {
		d.banned[b.IPAddress] = banEntry{reason: b.Reason, expiresAt: b.ExpiresAt}
	}
	count := len(d.banned)
	d.mu.Unlock()

	d.log.WithField("count", count).Info("loaded ip bans from database")
	return nil
}
