// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"context"
	"fmt"
	"time"
)

// Checkpointer optionally persists TurnState after each node transition,
// keyed by turn id (spec §6 "Persisted state"). Checkpoint format is left
// opaque to the core; an implementation may serialize TurnState however it
// likes.
type Checkpointer interface {
	Save(ctx context.Context, turnID string, state TurnState) error
}

// Engine runs the orchestrator graph end to end for one turn, generalizing
// the teacher's Executor (single linear loop, fixed 100-iteration cap) into
// the branching, conditionally-routed, step-budgeted design of spec §4.1.
type Engine struct {
	graph        *Graph
	opts         RunOptions
	checkpointer Checkpointer
}

// NewEngine constructs an Engine bound to a pre-built graph and run options.
// checkpointer may be nil (checkpointing is optional per spec §6).
func NewEngine(graph *Graph, opts RunOptions, checkpointer Checkpointer) *Engine {
	return &Engine{graph: graph, opts: opts, checkpointer: checkpointer}
}

// Run executes the graph synchronously until a terminal WorkflowStatus is
// reached or the turn deadline / step budget is exceeded (spec §6 run()).
func (e *Engine) Run(ctx context.Context, turnID string, query string) (Result, error) {
	final, err := e.execute(ctx, turnID, query, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Answer:     final.FinalAnswer,
		Confidence: final.Confidence,
		Warnings:   final.Warnings,
		Metadata:   final.Metadata,
	}, nil
}

// execute is the shared node-stepping loop used by both Run and Stream. A
// non-nil emit is invoked after every lifecycle event; Run passes nil.
func (e *Engine) execute(ctx context.Context, turnID string, query string, emit func(Event)) (TurnState, error) {
	if e.graph == nil {
		return TurnState{}, fmt.Errorf("graph is nil")
	}

	deadline := e.opts.TurnDeadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, deadline)
	defer cancel()

	state := NewTurnState(query, e.opts.MaxRetries)
	budget := StepBudget(e.opts.MaxSubtasks, e.opts.MaxRetries)

	current := e.graph.GetStartNode()
	if current == "" {
		return state, fmt.Errorf("no start node defined")
	}

	steps := 0
	for {
		select {
		case <-ctx.Done():
			state.WorkflowStatus = StatusFailed
			state.Error = ctx.Err()
			e.checkpoint(ctx, turnID, state)
			if emit != nil {
				emit(Event{Type: EventTerminal, State: state})
			}
			return state, nil
		default:
		}

		steps++
		if steps > budget {
			state.WorkflowStatus = StatusFailed
			state.Error = ErrStepBudgetExceeded
			e.checkpoint(ctx, turnID, state)
			if emit != nil {
				emit(Event{Type: EventTerminal, State: state})
			}
			return state, nil
		}

		if current == "" {
			break
		}

		node, err := e.graph.GetNode(current)
		if err != nil {
			return state, fmt.Errorf("failed to get node %s: %w", current, err)
		}

		if emit != nil {
			emit(Event{Type: EventNodeEntered, Node: current, State: state})
		}

		delta, err := node.Execute(ctx, state)
		if err != nil {
			state.WorkflowStatus = StatusFailed
			state.Error = err
			e.checkpoint(ctx, turnID, state)
			if emit != nil {
				emit(Event{Type: EventTerminal, State: state, Node: current})
			}
			return state, nil
		}

		state = Merge(state, delta)
		e.checkpoint(ctx, turnID, state)

		if emit != nil {
			emit(Event{Type: EventStateDelta, Node: current, State: state})
			emit(Event{Type: EventNodeCompleted, Node: current, State: state})
		}

		if state.WorkflowStatus == StatusCompleted || state.WorkflowStatus == StatusFailed {
			break
		}

		next, err := e.graph.Next(current, state)
		if err != nil {
			return state, err
		}
		current = next
	}

	if state.WorkflowStatus == StatusRunning {
		state.WorkflowStatus = StatusCompleted
	}
	if emit != nil {
		emit(Event{Type: EventTerminal, State: state})
	}
	return state, nil
}

func (e *Engine) checkpoint(ctx context.Context, turnID string, state TurnState) {
	if e.checkpointer == nil || turnID == "" {
		return
	}
	_ = e.checkpointer.Save(ctx, turnID, state)
}
