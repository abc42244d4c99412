package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type SagaStatus string

const (
	SagaStatusPending      SagaStatus = "pending"
	SagaStatusInProgress   SagaStatus = "in_progress"
	SagaStatusCompleted    SagaStatus = "completed"
	SagaStatusCompensating SagaStatus = "compensating"
	SagaStatusCompensated  SagaStatus = "compensated"
	SagaStatusFailed       SagaStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s SagaStatus) IsTerminal() bool {
	switch s {
	case SagaStatusCompleted, SagaStatusCompensated, SagaStatusFailed:
		return true
	}
	return false
}

// SagaInstance is one execution of a registered workflow. Payload is
// re-serialized after every step; CompletedSteps holds the step numbers
// that finished, in execution order.
type SagaInstance struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	SagaType         string        `db:"saga_type" json:"saga_type"`
	Status           SagaStatus    `db:"status" json:"status"`
	Payload          JSONMap       `db:"payload" json:"payload"`
	CurrentStep      int           `db:"current_step" json:"current_step"`
	CompletedSteps   pq.Int64Array `db:"completed_steps" json:"completed_steps"`
	CompensationData JSONMap       `db:"compensation_data" json:"compensation_data,omitempty"`
	ErrorMessage     *string       `db:"error_message" json:"error_message,omitempty"`
	TraceID          string        `db:"trace_id" json:"trace_id"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// HasCompleted reports whether step is already in CompletedSteps.
func (s *SagaInstance) HasCompleted(step int) bool {
	for _, done := range s.CompletedSteps {
		if int(done) == step {
			return true
		}
	}
	return false
}
