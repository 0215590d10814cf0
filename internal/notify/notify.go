// Package notify delivers job failure alerts. It is invoked by the failure
// hook a rendered service carries in ExecStopPost, so a run here is one
// synchronous send, not a long-lived pipeline.
package notify

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dron/internal/audit"
	"dron/internal/journal"
	"dron/pkg/logx"
)

var ErrDisabled = errors.New("notifications disabled")

// Config configures failure notifications.
type Config struct {
	Enabled bool
	// Channel selects the sender: "telegram" or "ntfy".
	Channel string

	Telegram TelegramConfig
	Ntfy     NtfyConfig

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	// DedupWindow suppresses repeat alerts for the same unit. Zero disables
	// suppression.
	DedupWindow time.Duration

	// TailLines is how much journal context rides along with the alert.
	TailLines int
}

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}

// Service builds and sends failure alerts with rate limiting, retry and
// cross-invocation dedup through the audit store.
type Service struct {
	cfg     Config
	sender  Sender
	limiter *rate.Limiter
	store   audit.Store // may be nil
	journal *journal.Reader
	log     logx.Logger

	hostname func() (string, error)
}

func New(cfg Config, store audit.Store, jr *journal.Reader, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 20
	}

	var sender Sender
	var err error
	switch strings.ToLower(strings.TrimSpace(cfg.Channel)) {
	case "telegram":
		sender, err = newTelegramSender(cfg.Telegram)
	case "ntfy":
		sender, err = newNtfySender(cfg.Ntfy)
	case "", "none":
		return nil, ErrDisabled
	default:
		return nil, errors.New("unknown notify channel: " + cfg.Channel)
	}
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:    cfg,
		sender: sender,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		store:    store,
		journal:  jr,
		log:      log,
		hostname: os.Hostname,
	}, nil
}

// JobFailed sends a failure alert for a unit, with its recent journal output
// attached. Alerts inside the dedup window are silently dropped.
func (s *Service) JobFailed(ctx context.Context, unitName string) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	key := dedupKey(s.cfg.Channel, unitName)
	if s.cfg.DedupWindow > 0 && s.suppressed(ctx, key) {
		s.log.Debug("alert suppressed", logx.String("unit", unitName))
		return nil
	}

	host, err := s.hostname()
	if err != nil {
		host = "?"
	}
	title := fmt.Sprintf("dron[%s]: %s failed", host, unitName)
	body := title
	if s.journal != nil {
		if lines, err := s.journal.Tail(ctx, unitName, s.cfg.TailLines); err != nil {
			s.log.Warn("journal tail", logx.String("unit", unitName), logx.Err(err))
		} else if len(lines) > 0 {
			body += "\n" + strings.Join(lines, "\n")
		}
	}

	if err := s.sendWithRetry(ctx, title, body); err != nil {
		return err
	}
	if s.cfg.DedupWindow > 0 && s.store != nil {
		pctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		if err := s.store.PutDedup(pctx, key, time.Now().Add(s.cfg.DedupWindow)); err != nil {
			s.log.Debug("dedup persist failed", logx.Err(err))
		}
		cancel()
	}
	return nil
}

func (s *Service) suppressed(ctx context.Context, key string) bool {
	if s.store == nil {
		return false
	}
	qctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	until, ok, err := s.store.GetDedup(qctx, key)
	cancel()
	if err != nil {
		s.log.Debug("dedup lookup failed", logx.Err(err))
		return false
	}
	return ok && time.Now().Before(until)
}

func (s *Service) sendWithRetry(ctx context.Context, title, body string) error {
	maxAttempts := 1 + s.cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.sender.Send(callCtx, title, body)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		s.log.Debug("alert send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		delay := retryDelay(s.cfg, attempt)
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}
	return lastErr
}

func dedupKey(channel, unitName string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(channel))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(unitName))
	return fmt.Sprintf("%x", h.Sum64())
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	maxD := cfg.RetryMaxDelay

	// Exponential backoff: base * 2^(attempt-1)
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.7 + rng.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}
