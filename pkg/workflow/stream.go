// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import "context"

// EventType enumerates the node-transition events stream() emits
// (spec §6): node_entered, node_completed, state_delta, terminal.
type EventType string

const (
	EventNodeEntered   EventType = "node_entered"
	EventNodeCompleted EventType = "node_completed"
	EventStateDelta    EventType = "state_delta"
	EventTerminal      EventType = "terminal"
)

// Event is one language-agnostic record streamed over the sequence<event>
// surface of spec §6. On the terminal event, Node names the failing node only
// when a node's Execute returned an error; it is empty when the turn ends
// normally, on a context deadline, or on the step budget.
type Event struct {
	Type  EventType
	Node  string
	State TurnState
}

// Stream runs the graph exactly like Run, but emits an Event per node
// transition on the returned channel instead of returning once at the end.
// The channel is closed after the terminal event. Intermediate
// structured-output fragments from model calls are never exposed here —
// only post-merge TurnState snapshots are, per spec §6's suppression
// requirement.
func (e *Engine) Stream(ctx context.Context, turnID string, query string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		_, _ = e.execute(ctx, turnID, query, func(ev Event) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return out
}
