// internal/pipeline/orchestrator.go

// Package pipeline drives a session through the application stages. The
// orchestrator owns stage dispatch, transition enforcement, the per-stage
// retry ceiling and terminal archival; the stage handlers own everything
// inside a single turn.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loan-pipeline/internal/common/config"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/common/metrics"
	"loan-pipeline/internal/common/observability"
	"loan-pipeline/internal/models"
	"loan-pipeline/internal/store"
)

// StageHandler processes one turn for the stage it owns. It may mutate the
// session's collected fields but never the stage itself; the returned
// result carries the requested transition.
type StageHandler interface {
	Handle(ctx context.Context, session *models.Session, input *models.TurnInput) (*models.StageResult, error)
}

// Response is the orchestrator's answer to one inbound turn.
type Response struct {
	SessionID string       `json:"sessionId"`
	Stage     models.Stage `json:"stage"`
	Prompt    string       `json:"prompt,omitempty"`
	Finished  bool         `json:"finished"`
}

const promptRetryTurn = "We hit a temporary problem processing that. Please try again in a moment."

type Orchestrator struct {
	store      store.SessionStore
	history    store.HistoryStore
	handlers   map[models.Stage]StageHandler
	errHandler *stderrors.ErrorHandler
	cfg        config.PipelineConfig
	logger     logger.Logger
	obs        *observability.Observability

	mu    sync.Mutex
	locks map[string]*customerLock
}

// customerLock serializes turns for one customerRef. Entries are
// reference counted so the map does not grow by one mutex per customer
// ever seen.
type customerLock struct {
	mu   sync.Mutex
	refs int
}

func NewOrchestrator(
	sessions store.SessionStore,
	history store.HistoryStore,
	handlers map[models.Stage]StageHandler,
	cfg config.PipelineConfig,
	log logger.Logger,
	obs *observability.Observability,
) *Orchestrator {
	return &Orchestrator{
		store:      sessions,
		history:    history,
		handlers:   handlers,
		errHandler: stderrors.NewErrorHandler(log),
		cfg:        cfg,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		obs:        obs,
		locks:      make(map[string]*customerLock),
	}
}

// HandleTurn processes one inbound turn for a customer. Turns for the same
// customerRef are strictly serialized; a concurrent turn blocks until the
// in-flight one finishes, so a stage is never evaluated twice for the same
// state.
func (o *Orchestrator) HandleTurn(ctx context.Context, input *models.TurnInput) (*Response, error) {
	if strings.TrimSpace(input.CustomerRef) == "" {
		return nil, stderrors.NewSessionNotFoundError("(no customerRef)")
	}

	lock := o.acquireLock(input.CustomerRef)
	defer o.releaseLock(input.CustomerRef, lock)

	if o.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.TurnTimeout)*time.Millisecond)
		defer cancel()
	}

	session, created, err := o.store.GetOrCreate(ctx, input.CustomerRef)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.ActiveSessions.Inc()
		o.logger.Info("session created", map[string]interface{}{
			"sessionId":   session.SessionID,
			"customerRef": session.CustomerRef,
		})
	}

	return o.runTurn(ctx, session, input)
}

// runTurn dispatches the current stage and applies the resulting
// transition, chaining into the next stage while handlers keep advancing.
// Each hop is validated against the transition graph individually, so a
// skip can never slip through via chaining.
func (o *Orchestrator) runTurn(ctx context.Context, session *models.Session, input *models.TurnInput) (*Response, error) {
	turnInput := input

	for hops := 0; hops <= len(models.ActiveStages); hops++ {
		stage := session.Stage
		handler, ok := o.handlers[stage]
		if !ok {
			return nil, stderrors.NewStageTransitionInvalidError(string(stage), "(no handler)")
		}

		start := time.Now()
		result, err := handler.Handle(ctx, session, turnInput)
		o.recordTurn(ctx, stage, time.Since(start))

		if err != nil {
			return o.handleFailure(ctx, session, stage, err)
		}

		switch result.Outcome {
		case models.StageContinue:
			session.Touch()
			if err := o.store.Save(ctx, session); err != nil {
				return nil, err
			}
			return &Response{SessionID: session.SessionID, Stage: stage, Prompt: result.Prompt}, nil

		case models.StageAdvance:
			next, ok := stage.Successor()
			if !ok || !models.CanTransition(stage, next) {
				return nil, stderrors.NewStageTransitionInvalidError(string(stage), string(next))
			}
			session.Stage = next
			session.Touch()
			if err := o.store.Save(ctx, session); err != nil {
				return nil, err
			}
			if next.IsTerminal() {
				return o.finish(ctx, session, result.Prompt)
			}
			// Free text and structured fields are consumed by the stage
			// they were sent to; only the document travels onward.
			turnInput = &models.TurnInput{
				CustomerRef: input.CustomerRef,
				DocumentRef: input.DocumentRef,
			}

		case models.StageTerminal:
			if !models.CanTransition(stage, result.Terminal) {
				return nil, stderrors.NewStageTransitionInvalidError(string(stage), string(result.Terminal))
			}
			session.Stage = result.Terminal
			session.Touch()
			return o.finish(ctx, session, result.Prompt)

		default:
			return nil, stderrors.NewStageTransitionInvalidError(string(stage), string(result.Outcome))
		}
	}

	return nil, stderrors.NewStageTransitionInvalidError(string(session.Stage), "(chain limit exceeded)")
}

// handleFailure classifies a stage error. Retryable failures consume the
// stage's retry budget and re-prompt; once the ceiling is reached, or when
// the failure is not retryable, the session escalates to manual review.
// Contract violations abort loudly without touching the session.
func (o *Orchestrator) handleFailure(ctx context.Context, session *models.Session, stage models.Stage, err error) (*Response, error) {
	attemptsUsed := session.RetryCounts[stage]
	action, stdErr := o.errHandler.HandleStageError(session.SessionID, string(stage), err, attemptsUsed)
	metrics.TurnsFailed.WithLabelValues(string(stage), string(stdErr.Code)).Inc()

	if action == stderrors.ActionAbort {
		return nil, stdErr
	}

	if action == stderrors.ActionRetry {
		retries := session.IncrementRetry(stage)
		if retries < o.cfg.MaxStageRetries {
			session.Touch()
			if saveErr := o.store.Save(ctx, session); saveErr != nil {
				return nil, saveErr
			}
			return &Response{SessionID: session.SessionID, Stage: stage, Prompt: promptRetryTurn}, nil
		}
		o.logger.Warn("stage retry ceiling reached", map[string]interface{}{
			"sessionId": session.SessionID,
			"stage":     string(stage),
			"retries":   retries,
		})
	}

	session.Stage = models.StageManualReview
	session.Touch()
	return o.finish(ctx, session, "Your application needs a closer look. Our team will contact you.")
}

// finish archives a session that reached a terminal stage. For manual
// review a snapshot is appended first so reviewers get the full context
// even after the active record is gone.
func (o *Orchestrator) finish(ctx context.Context, session *models.Session, prompt string) (*Response, error) {
	if session.Stage == models.StageManualReview {
		if err := o.history.AppendSnapshot(ctx, o.buildSnapshot(session)); err != nil {
			return nil, err
		}
	}

	if err := o.store.Archive(ctx, session); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Dec()

	o.logger.Info("session finished", map[string]interface{}{
		"sessionId":   session.SessionID,
		"customerRef": session.CustomerRef,
		"stage":       string(session.Stage),
	})

	return &Response{
		SessionID: session.SessionID,
		Stage:     session.Stage,
		Prompt:    prompt,
		Finished:  true,
	}, nil
}

func (o *Orchestrator) buildSnapshot(session *models.Session) *models.ManualReviewSnapshot {
	reasons := []string{"stage_retry_ceiling_reached"}
	flags := []string{}
	if session.DecisionRecord != nil {
		reasons = session.DecisionRecord.Reasons
		flags = session.DecisionRecord.AnomalyFlags
	}
	return &models.ManualReviewSnapshot{
		SnapshotID:      uuid.NewString(),
		SessionID:       session.SessionID,
		CustomerRef:     session.CustomerRef,
		CollectedFields: session.CollectedFields,
		Reasons:         reasons,
		AnomalyFlags:    flags,
		CreatedAt:       time.Now().UTC(),
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, stage models.Stage, elapsed time.Duration) {
	metrics.TurnsProcessed.WithLabelValues(string(stage)).Inc()
	metrics.TurnDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordTurnProcessed(ctx, string(stage))
		o.obs.RecordTurnDuration(ctx, elapsed, string(stage))
	}
}

func (o *Orchestrator) acquireLock(customerRef string) *customerLock {
	o.mu.Lock()
	lock, ok := o.locks[customerRef]
	if !ok {
		lock = &customerLock{}
		o.locks[customerRef] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (o *Orchestrator) releaseLock(customerRef string, lock *customerLock) {
	lock.mu.Unlock()

	o.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(o.locks, customerRef)
	}
	o.mu.Unlock()
}
