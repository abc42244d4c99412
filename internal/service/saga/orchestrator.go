package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/filevault-api/pkg/errors"
	"github.com/jwalitptl/filevault-api/pkg/logger"
	"github.com/jwalitptl/filevault-api/pkg/metrics"
	"github.com/jwalitptl/filevault-api/pkg/worker"

	"github.com/jwalitptl/filevault-api/internal/model"
	"github.com/jwalitptl/filevault-api/internal/repository"
)

// Orchestrator drives saga instances through their registered steps,
// persisting progress after every step. Execution is fire-and-forget:
// StartSaga returns as soon as the instance row exists, and completion
// is observable only through GetSagaInstance.
type Orchestrator struct {
	registry *Registry
	repo     repository.SagaRepository
	pool     *worker.Pool
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOrchestrator(
	registry *Registry,
	repo repository.SagaRepository,
	pool *worker.Pool,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		repo:     repo,
		pool:     pool,
		logger:   logger,
		metrics:  metrics,
	}
}

// StartSaga validates the type, persists a new in-progress instance and
// schedules execution on the worker pool. The caller never blocks on
// step execution; an unknown type is the only synchronous failure.
func (o *Orchestrator) StartSaga(ctx context.Context, sagaType string, initialData model.JSONMap, traceID string) (*model.SagaInstance, error) {
	if _, ok := o.registry.Get(sagaType); !ok {
		return nil, apperrors.NewUnknownSagaType(sagaType)
	}

	instance := &model.SagaInstance{
		SagaType:       sagaType,
		Status:         model.SagaStatusInProgress,
		Payload:        initialData,
		CurrentStep:    0,
		CompletedSteps: []int64{},
		TraceID:        traceID,
	}
	if err := o.repo.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to persist saga instance: %w", err)
	}

	o.metrics.SagasStarted.Inc()

	id := instance.ID
	o.pool.Submit(func() {
		// Detached from the request context so the workflow outlives
		// the HTTP call that started it.
		o.Execute(context.Background(), id)
	})

	return instance, nil
}

func (o *Orchestrator) GetSagaInstance(ctx context.Context, id uuid.UUID) (*model.SagaInstance, error) {
	return o.repo.Get(ctx, id)
}

// Execute runs the instance's remaining steps in definition order.
// Steps whose number is already in CompletedSteps are skipped, so a
// re-entered execution resumes where the last one persisted. No lock is
// held across invocations; two concurrent executions of one instance
// can race on the progress row.
func (o *Orchestrator) Execute(ctx context.Context, id uuid.UUID) {
	instance, err := o.repo.Get(ctx, id)
	if err != nil {
		o.logger.Error(err, "Failed to load saga instance", "saga_id", id.String())
		return
	}
	if instance.Status.IsTerminal() {
		return
	}

	def, ok := o.registry.Get(instance.SagaType)
	if !ok {
		o.logger.Error(nil, "Saga type no longer registered, instance stalled",
			"saga_id", id.String(), "saga_type", instance.SagaType)
		return
	}

	log := o.logger.WithFields(map[string]interface{}{
		"saga_id":   instance.ID.String(),
		"saga_type": instance.SagaType,
		"trace_id":  instance.TraceID,
	})

	for i, step := range def.Steps {
		stepNumber := i + 1
		if instance.HasCompleted(stepNumber) {
			continue
		}

		instance.CurrentStep = stepNumber
		patch, err := runStep(ctx, step, instance.Payload)
		if err != nil {
			o.metrics.SagaStepErrors.WithLabelValues(instance.SagaType).Inc()
			log.Error(err, "Saga step failed, compensating", "step", step.Name, "step_number", stepNumber)
			o.compensate(ctx, instance, def, err)
			return
		}

		instance.Payload = instance.Payload.Merge(patch)
		instance.CompletedSteps = append(instance.CompletedSteps, int64(stepNumber))
		if err := o.repo.UpdateProgress(ctx, instance); err != nil {
			log.Error(err, "Failed to persist saga progress, aborting run", "step", step.Name)
			return
		}
	}

	if err := o.repo.UpdateStatus(ctx, instance.ID, model.SagaStatusCompleted, nil); err != nil {
		log.Error(err, "Failed to mark saga completed")
		return
	}
	o.metrics.SagasFinished.WithLabelValues(string(model.SagaStatusCompleted)).Inc()
	log.Debug("Saga completed")
}

// compensate undoes completed steps in strict reverse order. Individual
// compensation failures are logged and skipped, rollback always runs to
// the end, and the instance lands on compensated either way.
func (o *Orchestrator) compensate(ctx context.Context, instance *model.SagaInstance, def *Definition, cause error) {
	// Record the failed attempt's cursor before transitioning, so
	// CurrentStep reflects the last attempted step, not the last
	// completed one.
	if err := o.repo.UpdateProgress(ctx, instance); err != nil {
		o.logger.Error(err, "Failed to persist saga cursor", "saga_id", instance.ID.String())
	}

	errMsg := cause.Error()
	if err := o.repo.UpdateStatus(ctx, instance.ID, model.SagaStatusCompensating, &errMsg); err != nil {
		o.logger.Error(err, "Failed to mark saga compensating", "saga_id", instance.ID.String())
	}

	for i := len(instance.CompletedSteps) - 1; i >= 0; i-- {
		stepNumber := int(instance.CompletedSteps[i])
		if stepNumber < 1 || stepNumber > len(def.Steps) {
			continue
		}
		step := def.Steps[stepNumber-1]
		if step.Compensate == nil {
			continue
		}

		if err := runCompensation(ctx, step, instance.Payload, instance.CompensationData); err != nil {
			o.logger.Error(err, "Compensation step failed, continuing rollback",
				"saga_id", instance.ID.String(), "step", step.Name, "step_number", stepNumber)
		}
	}

	if err := o.repo.UpdateStatus(ctx, instance.ID, model.SagaStatusCompensated, nil); err != nil {
		o.logger.Error(err, "Failed to mark saga compensated", "saga_id", instance.ID.String())
		return
	}
	o.metrics.SagasFinished.WithLabelValues(string(model.SagaStatusCompensated)).Inc()
}

// runStep invokes a forward action, converting a panic into an error so
// a panicking step triggers compensation like any other failure.
func runStep(ctx context.Context, step Step, data model.JSONMap) (patch model.JSONMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()
	return step.Execute(ctx, data)
}

func runCompensation(ctx context.Context, step Step, data, compensationData model.JSONMap) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensation for step %s panicked: %v", step.Name, r)
		}
	}()
	return step.Compensate(ctx, data, compensationData)
}
