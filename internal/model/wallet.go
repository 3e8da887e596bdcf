package model

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a student's prepaid balance. Amounts are in cents.
type Wallet struct {
	UserRef      string    `json:"user_ref"`
	BalanceCents int64     `json:"balance_cents"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LedgerKind string

const (
	LedgerKindCharge LedgerKind = "charge"
	LedgerKindRefund LedgerKind = "refund"
)

// LedgerEntry records one money movement for a booking.
// There is at most one entry per (booking, kind).
type LedgerEntry struct {
	ID          uuid.UUID  `json:"id"`
	BookingID   int64      `json:"booking_id"`
	UserRef     string     `json:"user_ref"`
	Kind        LedgerKind `json:"kind"`
	AmountCents int64      `json:"amount_cents"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ChargeStatus string

const (
	ChargeStatusPaid              ChargeStatus = "paid"
	ChargeStatusAlreadyPaid       ChargeStatus = "already_paid"
	ChargeStatusInsufficientFunds ChargeStatus = "insufficient_funds"
	ChargeStatusFailed            ChargeStatus = "failed"
)

// ChargeResult is the answer of the wallet to a session charge.
type ChargeResult struct {
	Status       ChargeStatus `json:"status"`
	BalanceCents int64        `json:"balance_cents"`
	Reason       string       `json:"reason,omitempty"`
}

type Initiator string

const (
	InitiatorStudent Initiator = "student"
	InitiatorTeacher Initiator = "teacher"
	InitiatorSystem  Initiator = "system"
)

// CancelRequest asks the wallet to cancel a booking and refund the student.
type CancelRequest struct {
	BookingID   int64     `json:"booking_id"`
	Initiator   Initiator `json:"initiator"`
	ScheduledAt time.Time `json:"scheduled_at"`
	StudentRef  string    `json:"student_ref"`
}

type RefundResult struct {
	Success      bool   `json:"success"`
	Refunded     bool   `json:"refunded"` // деньги действительно вернулись на баланс
	AmountCents  int64  `json:"amount_cents"`
	BalanceCents *int64 `json:"balance_cents,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type CancelResult struct {
	Success bool         `json:"success"`
	Refund  RefundResult `json:"refund"`
}
