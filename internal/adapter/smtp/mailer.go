// Package smtp delivers domain messages through an SMTP relay using go-mail.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/retry"
	"github.com/wneessen/go-mail"
)

// TLS modes accepted by Config.TLS.
const (
	TLSStartTLS = "starttls"
	TLSImplicit = "tls"
	TLSNone     = "none"
)

const defaultTimeout = 15 * time.Second

// ErrCircuitOpen is returned while the relay is considered down.
var ErrCircuitOpen = errors.New("smtp relay unavailable: circuit open")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string
	Timeout  time.Duration
}

// sender is the part of *mail.Client the mailer uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type senderFactory func() (sender, error)

type Option func(*Mailer)

// WithRetryPolicy overrides the default three-attempt policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(m *Mailer) { m.policy = p }
}

func withSenderFactory(f senderFactory) Option {
	return func(m *Mailer) { m.newSender = f }
}

type Mailer struct {
	from      string
	newSender senderFactory
	cb        circuitbreaker.CircuitBreaker[any]
	policy    retry.Policy
}

var _ domain.Mailer = (*Mailer)(nil)

// New validates cfg and prepares a mailer. No connection is made until Send.
// bm may be nil.
func New(cfg Config, bm *metrics.BreakerMetrics, opts ...Option) (*Mailer, error) {
	clientOpts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	m := &Mailer{
		from: cfg.From,
		newSender: func() (sender, error) {
			// a fresh client per message; *mail.Client holds one connection
			return mail.NewClient(cfg.Host, clientOpts...)
		},
		cb: newBreaker(bm),
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   time.Second,
			MaxBackoff:       10 * time.Second,
			ThrottledBackoff: 30 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("SMTP send failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	// validate the client options once up front
	if _, err := m.newSender(); err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return m, nil
}

func clientOptions(cfg Config) ([]mail.Option, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithTimeout(timeout)}

	switch cfg.TLS {
	case TLSStartTLS, "":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", cfg.TLS)
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return opts, nil
}

// Build renders msg into a go-mail message: HTML body, plain-text
// alternative and attachments.
func (m *Mailer) Build(msg domain.Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	var err error
	if msg.ToName != "" {
		err = out.AddToFormat(msg.ToName, msg.To)
	} else {
		err = out.To(msg.To)
	}
	if err != nil {
		return nil, &retry.PermanentError{Err: fmt.Errorf("invalid recipient address: %w", err)}
	}

	out.Subject(msg.Subject)
	out.SetMessageID()
	out.SetDate()
	out.SetBodyString(mail.TypeTextPlain, HTMLToText(msg.HTMLBody))
	out.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)

	for _, a := range msg.Attachments {
		opt := mail.WithFileContentType(mail.ContentType(a.ContentType))
		if err := out.AttachReader(a.Filename, bytes.NewReader(a.Data), opt); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return out, nil
}

// Send delivers one message, retrying transient relay failures.
func (m *Mailer) Send(ctx context.Context, msg domain.Message) error {
	built, err := m.Build(msg)
	if err != nil {
		return err
	}

	return retry.DoVoid(ctx, m.policy, classify, func(ctx context.Context) error {
		return m.attempt(ctx, built)
	})
}

func (m *Mailer) attempt(ctx context.Context, msg *mail.Msg) error {
	if !m.cb.TryAcquirePermit() {
		return ErrCircuitOpen
	}

	client, err := m.newSender()
	if err != nil {
		m.cb.RecordError(err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	err = client.DialAndSendWithContext(ctx, msg)
	switch {
	case err == nil:
		m.cb.RecordSuccess()
		return nil
	case rejectedByRelay(err):
		// the relay answered; a rejected recipient says nothing about its health
		m.cb.RecordSuccess()
	default:
		m.cb.RecordError(err)
	}
	return fmt.Errorf("smtp send: %w", err)
}

func classify(err error) retry.Action {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return retry.After
		}
		return retry.Stop
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Retry
	}
	return retry.Stop
}

// rejectedByRelay reports a permanent SMTP reply such as 550 for an unknown mailbox.
func rejectedByRelay(err error) bool {
	var sendErr *mail.SendError
	return errors.As(err, &sendErr) && !sendErr.IsTemp()
}

// State exposes the breaker state for tests and health reporting.
func (m *Mailer) State() circuitbreaker.State {
	return m.cb.State()
}
