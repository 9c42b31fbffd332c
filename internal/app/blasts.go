package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/logging"
)

const (
	defaultLockTTL     = time.Minute
	recordTimeout      = 10 * time.Second
	ecardFilename      = "ecard.pdf"
	interruptedMessage = "delivery interrupted"
)

// ErrShuttingDown is returned by SendBlast after Stop.
var ErrShuttingDown = errors.New("blast service is shutting down")

// BlastConfig tunes delivery.
type BlastConfig struct {
	Workers       int
	RatePerSecond float64
	LockTTL       time.Duration
}

// BlastService creates campaigns and delivers them in the background.
type BlastService struct {
	blasts       domain.BlastRepository
	templates    domain.TemplateRepository
	participants domain.ParticipantRepository
	lock         domain.BlastLock
	mailer       domain.Mailer
	renderer     domain.ECardRenderer
	cache        domain.AnalyticsCache
	metrics      *metrics.BlastMetrics
	clock        clockwork.Clock
	cfg          BlastConfig

	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
}

func NewBlastService(
	blasts domain.BlastRepository,
	templates domain.TemplateRepository,
	participants domain.ParticipantRepository,
	lock domain.BlastLock,
	mailer domain.Mailer,
	renderer domain.ECardRenderer,
	cache domain.AnalyticsCache,
	m *metrics.BlastMetrics,
	clock clockwork.Clock,
	cfg BlastConfig,
) *BlastService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BlastService{
		blasts:       blasts,
		templates:    templates,
		participants: participants,
		lock:         lock,
		mailer:       mailer,
		renderer:     renderer,
		cache:        cache,
		metrics:      m,
		clock:        clock,
		cfg:          cfg,
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

func (s *BlastService) CreateBlast(ctx context.Context, in domain.BlastInput) (*domain.Blast, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := requireLength("name", in.Name, 1, maxBlastName); err != nil {
		return nil, err
	}
	if err := requireLength("subject", in.Subject, 0, maxSubject); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.Get(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if in.Subject == "" {
		in.Subject = tmpl.Subject
	}

	recipients, err := s.participants.ListForAudience(ctx, in.Audience)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, domain.ErrEmptyAudience
	}

	b, err := s.blasts.Create(ctx, in, len(recipients))
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	slog.Info("Blast created", "blast_id", b.ID, "template_id", b.TemplateID, "total", b.Total)
	return b, nil
}

func (s *BlastService) GetBlast(ctx context.Context, blastID uuid.UUID) (*domain.Blast, error) {
	return s.blasts.Get(ctx, blastID)
}

func (s *BlastService) ListBlasts(ctx context.Context, limit, offset int) ([]domain.Blast, int, error) {
	limit, offset = NormalizePage(limit, offset)
	return s.blasts.List(ctx, limit, offset)
}

func (s *BlastService) ListDeliveries(ctx context.Context, blastID uuid.UUID, limit, offset int) ([]domain.Delivery, int, error) {
	if _, err := s.blasts.Get(ctx, blastID); err != nil {
		return nil, 0, err
	}
	limit, offset = NormalizePage(limit, offset)
	return s.blasts.ListDeliveries(ctx, blastID, limit, offset)
}

// SendBlast claims the blast, moves it to sending and starts delivery in the
// background. A failed blast may be sent again; recipients that already
// received it are skipped.
func (s *BlastService) SendBlast(ctx context.Context, blastID uuid.UUID) (*domain.Blast, error) {
	b, err := s.blasts.Get(ctx, blastID)
	if err != nil {
		return nil, err
	}
	if b.Status == domain.BlastSending {
		return nil, domain.ErrBlastInProgress
	}
	if !b.Status.Sendable() {
		return nil, domain.ErrBlastNotSendable
	}
	if !s.reserve() {
		return nil, ErrShuttingDown
	}
	launched := false
	defer func() {
		if !launched {
			s.wg.Done()
		}
	}()

	token, acquired, err := s.lock.Acquire(ctx, blastID, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire blast lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrBlastInProgress
	}

	pending, total, tmpl, err := s.prepare(ctx, b)
	if err == nil && s.baseCtx.Err() != nil {
		err = ErrShuttingDown
	}
	if err == nil {
		err = s.blasts.MarkSending(ctx, blastID, total, s.clock.Now())
	}
	if err != nil {
		s.releaseLock(blastID, token)
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)

	started, err := s.blasts.Get(ctx, blastID)
	if err != nil {
		s.releaseLock(blastID, token)
		return nil, err
	}

	launched = true
	go s.deliver(started, tmpl, pending, token)

	slog.Info("Blast send started", "blast_id", blastID, "total", total, "pending", len(pending))
	return started, nil
}

// prepare loads the template and splits the audience into recipients still
// owed a message. total is the full audience size.
func (s *BlastService) prepare(ctx context.Context, b *domain.Blast) ([]domain.Participant, int, *domain.Template, error) {
	tmpl, err := s.templates.Get(ctx, b.TemplateID)
	if err != nil {
		return nil, 0, nil, err
	}
	audience, err := s.participants.ListForAudience(ctx, b.Audience)
	if err != nil {
		return nil, 0, nil, err
	}
	if len(audience) == 0 {
		return nil, 0, nil, domain.ErrEmptyAudience
	}

	sentIDs, err := s.blasts.SentParticipantIDs(ctx, b.ID)
	if err != nil {
		return nil, 0, nil, err
	}
	sent := make(map[uuid.UUID]struct{}, len(sentIDs))
	for _, id := range sentIDs {
		sent[id] = struct{}{}
	}

	pending := make([]domain.Participant, 0, len(audience))
	for _, p := range audience {
		if _, ok := sent[p.ID]; !ok {
			pending = append(pending, p)
		}
	}
	return pending, len(audience), tmpl, nil
}

func (s *BlastService) deliver(b *domain.Blast, tmpl *domain.Template, recipients []domain.Participant, token string) {
	defer s.wg.Done()

	log := logging.WithBlast(b.ID.String())
	start := s.clock.Now()
	s.metrics.InProgress.Inc()
	defer s.metrics.InProgress.Dec()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	lockDone := make(chan struct{})
	go func() {
		defer close(lockDone)
		s.keepLock(ctx, cancel, b.ID, token)
	}()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.Workers)
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	var mu sync.Mutex
	var lastFailure string

	for _, p := range recipients {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if err := s.sendOne(ctx, b, tmpl, p); err != nil {
				mu.Lock()
				lastFailure = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	cancel()
	<-lockDone

	finishCtx, finishCancel := context.WithTimeout(context.Background(), recordTimeout)
	defer finishCancel()

	status, lastError := domain.BlastFailed, interruptedMessage
	current, err := s.blasts.Get(finishCtx, b.ID)
	switch {
	case err != nil:
		log.Error("Failed to reload blast counters", "error", err)
		lastError = "failed to reload blast counters"
	case runErr == nil:
		status = domain.FinalStatus(current.Sent, current.Failed)
		lastError = lastFailure
	}

	if err := s.blasts.Finish(finishCtx, b.ID, status, lastError, s.clock.Now()); err != nil {
		log.Error("Failed to finish blast", "status", status, "error", err)
	}
	if err := s.lock.Release(finishCtx, b.ID, token); err != nil {
		log.Warn("Failed to release blast lock", "error", err)
	}
	invalidateAnalytics(finishCtx, s.cache)

	elapsed := s.clock.Since(start)
	s.metrics.BlastDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
	log.Info("Blast finished", "status", status, "duration", elapsed, "attempted", len(recipients))
}

// keepLock extends the lock while delivery runs and cancels delivery if the
// lock is lost to another instance.
func (s *BlastService) keepLock(ctx context.Context, cancel context.CancelFunc, blastID uuid.UUID, token string) {
	ticker := s.clock.NewTicker(s.cfg.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			ok, err := s.lock.Refresh(ctx, blastID, token, s.cfg.LockTTL)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Failed to refresh blast lock", "blast_id", blastID, "error", err)
				continue
			}
			if !ok {
				slog.Error("Blast lock lost, stopping delivery", "blast_id", blastID)
				cancel()
				return
			}
		}
	}
}

// sendOne delivers to one participant and records the attempt. The returned
// error is the delivery failure, if any.
func (s *BlastService) sendOne(ctx context.Context, b *domain.Blast, tmpl *domain.Template, p domain.Participant) error {
	delivery := domain.Delivery{
		BlastID:       b.ID,
		ParticipantID: p.ID,
		Email:         p.Email,
		Status:        domain.DeliverySent,
	}

	err := s.compose(ctx, b, tmpl, p)
	delivery.AttemptedAt = s.clock.Now()
	if err != nil {
		delivery.Status = domain.DeliveryFailed
		delivery.Error = err.Error()
		s.metrics.EmailsFailed.Inc()
		slog.Warn("Blast email failed", "blast_id", b.ID, "participant_id", p.ID, "error", err)
	} else {
		s.metrics.EmailsSent.Inc()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if recErr := s.blasts.RecordDelivery(recordCtx, delivery); recErr != nil {
		slog.Error("Failed to record delivery", "blast_id", b.ID, "participant_id", p.ID, "error", recErr)
	}
	return err
}

func (s *BlastService) compose(ctx context.Context, b *domain.Blast, tmpl *domain.Template, p domain.Participant) error {
	msg := domain.Message{
		To:       p.Email,
		ToName:   p.Name,
		Subject:  Personalize(b.Subject, p, false),
		HTMLBody: Personalize(tmpl.BodyHTML, p, true),
	}

	if tmpl.ECard != nil && tmpl.ECard.Enabled && tmpl.ECard.HasBackdrop() {
		pdf, err := s.renderer.RenderPDF(*tmpl.ECard, p.Name, p.Role)
		if err != nil {
			return fmt.Errorf("failed to render e-card: %w", err)
		}
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			Filename:    ecardFilename,
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}

	return s.mailer.Send(ctx, msg)
}

func (s *BlastService) releaseLock(blastID uuid.UUID, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.lock.Release(ctx, blastID, token); err != nil {
		slog.Warn("Failed to release blast lock", "blast_id", blastID, "error", err)
	}
}

// RecoverInterrupted marks blasts left in sending by a crashed instance as
// failed so they can be sent again. A blast whose lock is still held is
// being delivered elsewhere and is left alone.
func (s *BlastService) RecoverInterrupted(ctx context.Context) (int, error) {
	sending, err := s.blasts.ListByStatus(ctx, domain.BlastSending)
	if err != nil {
		return 0, fmt.Errorf("failed to list sending blasts: %w", err)
	}

	recovered := 0
	for _, b := range sending {
		token, acquired, err := s.lock.Acquire(ctx, b.ID, s.cfg.LockTTL)
		if err != nil {
			slog.Warn("Failed to check blast lock during recovery", "blast_id", b.ID, "error", err)
			continue
		}
		if !acquired {
			continue
		}

		err = s.blasts.Finish(ctx, b.ID, domain.BlastFailed, interruptedMessage, s.clock.Now())
		s.releaseLock(b.ID, token)
		if err != nil {
			slog.Error("Failed to mark interrupted blast", "blast_id", b.ID, "error", err)
			continue
		}
		recovered++
		slog.Warn("Interrupted blast marked as failed", "blast_id", b.ID, "sent", b.Sent, "total", b.Total)
	}

	if recovered > 0 {
		invalidateAnalytics(ctx, s.cache)
	}
	return recovered, nil
}

// RunRecovery calls RecoverInterrupted on every tick until ctx is cancelled
// or Stop is called.
func (s *BlastService) RunRecovery(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := s.RecoverInterrupted(ctx); err != nil {
				slog.Error("Blast recovery failed", "error", err)
			}
		case <-s.baseCtx.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until all running deliveries have finished or ctx is done.
func (s *BlastService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve counts a send in progress so Stop waits for it. It reports false
// once Stop has been called.
func (s *BlastService) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// Stop cancels running deliveries and waits for them to record their state.
// Interrupted blasts end as failed and can be sent again. Sends that are
// still being prepared are waited for as well.
func (s *BlastService) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
	})
}
