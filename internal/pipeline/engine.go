package pipeline

import (
	"context"
	"fmt"

	"github.com/superagent/debatecore/internal/models"
)

// StageFunc is one pipeline stage: a pure function of context and state
// that returns the next state, per spec's re-architecture away from
// dynamic-dispatch stage classes.
type StageFunc func(ctx context.Context, dc *DebateContext, state *DebateState) (*DebateState, error)

// namedStage pairs a stage function with the round label it runs under,
// for events, checkpoints, and error messages.
type namedStage struct {
	label models.RoundLabel
	run   StageFunc
}

// standardStages is the Draft → Critique → Judge → Synthesis pipeline.
var standardStages = []namedStage{
	{models.RoundDraft, RunDraft},
	{models.RoundCritique, RunCritique},
	{models.RoundJudge, RunJudge},
	{models.RoundSynthesis, RunSynthesis},
}

// parliamentStages is the Explore → Rebuttal → Converge → Judge →
// Chair-Verdict pipeline.
var parliamentStages = []namedStage{
	{models.RoundExplore, RunExplore},
	{models.RoundRebuttal, RunRebuttal},
	{models.RoundConverge, RunConverge},
	{models.RoundJudge, RunJudge},
	{models.RoundChairVerdict, RunChairVerdict},
}

// conversationRounds is how many all-seats-speak + scribe rounds run
// before the final facilitator synthesis, when the caller doesn't
// override it via DebateContext (internal/config's ConversationConfig
// supplies the operational default).
const conversationRounds = 4

// Engine drives one debate's stage sequence to completion, publishing
// round_started/round_ended events and writing a checkpoint after each
// stage. It never panics or propagates a stage error to its caller:
// any fatal stage error is folded into the returned DebateState as a
// terminal failed/degraded status, per spec §7's "the engine never
// raises to the caller that dispatched it".
type Engine struct {
	ConversationRounds int
}

// Run executes the debate's configured mode from a fresh DebateState.
func (e *Engine) Run(ctx context.Context, dc *DebateContext) (*DebateState, error) {
	state := NewDebateState()
	return e.resume(ctx, dc, state, 0)
}

// Resume continues a debate from a previously checkpointed stage index,
// replaying no completed work: the caller is responsible for rehydrating
// state (transcript, candidates, usage) from persisted rows before
// calling Resume, per spec §4.5's resume-at-recorded-step rule.
func (e *Engine) Resume(ctx context.Context, dc *DebateContext, state *DebateState, fromStageIndex int) (*DebateState, error) {
	return e.resume(ctx, dc, state, fromStageIndex)
}

func (e *Engine) resume(ctx context.Context, dc *DebateContext, state *DebateState, fromStageIndex int) (*DebateState, error) {
	stages, err := e.stagesForMode(dc.Debate.Mode)
	if err != nil {
		state.Status = models.DebateStatusFailed
		return state, err
	}

	for i := fromStageIndex; i < len(stages); i++ {
		stage := stages[i]

		if err := ctx.Err(); err != nil {
			return state, err
		}

		if dc.Usage != nil {
			if exceeded, reason := dc.Usage.ExceedsBudget(dc.Budget); exceeded {
				state.Status = models.DebateStatusDegraded
				state.FinalMeta["truncate_reason"] = reason
				e.publish(ctx, dc, "round_skipped", stage.label, map[string]any{"reason": reason})
				return state, nil
			}
		}

		e.publish(ctx, dc, "round_started", stage.label, nil)

		next, stageErr := stage.run(ctx, dc, state)
		if next != nil {
			state = next
		}
		if stageErr != nil {
			state.Status = models.DebateStatusFailed
			e.publish(ctx, dc, "round_ended", stage.label, map[string]any{"error": stageErr.Error()})
			e.checkpoint(ctx, dc, stage.label, i, state)
			return state, stageErr
		}

		e.publish(ctx, dc, "round_ended", stage.label, nil)
		e.checkpoint(ctx, dc, stage.label, i, state)
	}

	if state.Status == models.DebateStatusRunning {
		state.Status = models.DebateStatusCompleted
	}
	e.publish(ctx, dc, "debate_terminal", "", map[string]any{"status": string(state.Status)})
	return state, nil
}

func (e *Engine) stagesForMode(mode models.DebateMode) ([]namedStage, error) {
	switch mode {
	case models.ModeDebate:
		return standardStages, nil
	case models.ModeParliament:
		return parliamentStages, nil
	case models.ModeConversation:
		rounds := e.ConversationRounds
		if rounds <= 0 {
			rounds = conversationRounds
		}
		stages := make([]namedStage, 0, rounds+1)
		for i := 0; i < rounds; i++ {
			stages = append(stages, namedStage{models.RoundDraft, RunConversationRound})
		}
		stages = append(stages, namedStage{models.RoundFacilitator, RunFacilitator})
		return stages, nil
	default:
		return nil, fmt.Errorf("%w: unknown debate mode %q", models.ErrStageFatal, mode)
	}
}

func (e *Engine) publish(ctx context.Context, dc *DebateContext, eventType string, label models.RoundLabel, payload map[string]any) {
	if dc.Events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if label != "" {
		payload["stage"] = string(label)
	}
	_ = dc.Events.Publish(ctx, dc.Debate.ID, eventType, payload)
}

func (e *Engine) checkpoint(ctx context.Context, dc *DebateContext, label models.RoundLabel, stageIndex int, state *DebateState) {
	if dc.Checkpoints == nil {
		return
	}
	_ = dc.Checkpoints.WriteCheckpoint(ctx, models.DebateCheckpoint{
		DebateID:   dc.Debate.ID,
		Step:       label,
		StepIndex:  stageIndex,
		RoundIndex: state.RoundIndex,
		Status:     state.Status,
		ContextMeta: map[string]any{
			"failed_seats": state.FailedSeats,
		},
	})
}
