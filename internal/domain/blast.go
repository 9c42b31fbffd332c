package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BlastStatus string

const (
	BlastDraft               BlastStatus = "draft"
	BlastSending             BlastStatus = "sending"
	BlastCompleted           BlastStatus = "completed"
	BlastCompletedWithErrors BlastStatus = "completed_with_errors"
	BlastFailed              BlastStatus = "failed"
)

// Sendable reports whether a send may start from this status.
func (s BlastStatus) Sendable() bool {
	return s == BlastDraft || s == BlastFailed
}

// FinalStatus derives the terminal status from delivery counters.
func FinalStatus(sent, failed int) BlastStatus {
	switch {
	case failed == 0:
		return BlastCompleted
	case sent == 0:
		return BlastFailed
	default:
		return BlastCompletedWithErrors
	}
}

// Audience selects recipients. Department and participant selections are
// unioned; an empty audience means every participant.
type Audience struct {
	DepartmentIDs  []uuid.UUID
	ParticipantIDs []uuid.UUID
}

func (a Audience) IsEmpty() bool {
	return len(a.DepartmentIDs) == 0 && len(a.ParticipantIDs) == 0
}

type Blast struct {
	ID         uuid.UUID
	TemplateID uuid.UUID
	Name       string
	Subject    string
	Status     BlastStatus
	Audience   Audience
	Total      int
	Sent       int
	Failed     int
	LastError  string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type BlastInput struct {
	TemplateID uuid.UUID
	Name       string
	Subject    string
	Audience   Audience
	CreatedBy  uuid.UUID
}

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

type Delivery struct {
	ID            uuid.UUID
	BlastID       uuid.UUID
	ParticipantID uuid.UUID
	Email         string
	Status        DeliveryStatus
	Error         string
	AttemptedAt   time.Time
}

type BlastRepository interface {
	Create(ctx context.Context, in BlastInput, total int) (*Blast, error)
	Get(ctx context.Context, blastID uuid.UUID) (*Blast, error)
	List(ctx context.Context, limit, offset int) ([]Blast, int, error)
	ListByStatus(ctx context.Context, status BlastStatus) ([]Blast, error)
	// MarkSending moves a draft or failed blast to sending, clears failed
	// deliveries from a previous attempt and resets the failed counter.
	MarkSending(ctx context.Context, blastID uuid.UUID, total int, at time.Time) error
	// SentParticipantIDs lists recipients that already have a successful delivery.
	SentParticipantIDs(ctx context.Context, blastID uuid.UUID) ([]uuid.UUID, error)
	// RecordDelivery stores the attempt and bumps the matching counter in one transaction.
	RecordDelivery(ctx context.Context, d Delivery) error
	Finish(ctx context.Context, blastID uuid.UUID, status BlastStatus, lastError string, at time.Time) error
	ListDeliveries(ctx context.Context, blastID uuid.UUID, limit, offset int) ([]Delivery, int, error)
}

// BlastLock guarantees a blast is delivered by at most one worker across instances.
type BlastLock interface {
	Acquire(ctx context.Context, blastID uuid.UUID, ttl time.Duration) (token string, acquired bool, err error)
	Refresh(ctx context.Context, blastID uuid.UUID, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, blastID uuid.UUID, token string) error
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
