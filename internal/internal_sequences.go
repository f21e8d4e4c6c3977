// The MIT License
//
// Copyright (c) 2020 Temporal Technologies Inc.  All rights reserved.
//
// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import "fmt"

type (
	// resourceKind partitions sequence numbers. Every awaitable resource kind
	// owns its own monotonically increasing counter.
	resourceKind int32

	// completion is a stored resolver/rejector pair awaiting an asynchronous
	// event identified by sequence number. It is resolved or rejected exactly
	// once and then removed from the registry.
	completion struct {
		resolve func(result interface{})
		reject  func(err error)
	}

	// blockedCondition is a suspended predicate together with the resolver
	// that releases its waiter.
	blockedCondition struct {
		seq       uint32
		predicate func() bool
		resolve   func()
	}
)

const (
	resourceKindTimer resourceKind = iota
	resourceKindActivity
	resourceKindChildWorkflow
	resourceKindSignal
	resourceKindDependency
	resourceKindCancelWorkflowExternal
	resourceKindSignalWorkflowExternal
	resourceKindCondition
)

func (k resourceKind) String() string {
	switch k {
	case resourceKindTimer:
		return "timer"
	case resourceKindActivity:
		return "activity"
	case resourceKindChildWorkflow:
		return "childWorkflow"
	case resourceKindSignal:
		return "signal"
	case resourceKindDependency:
		return "dependency"
	case resourceKindCancelWorkflowExternal:
		return "cancelWorkflowExternal"
	case resourceKindSignalWorkflowExternal:
		return "signalWorkflowExternal"
	case resourceKindCondition:
		return "condition"
	default:
		return fmt.Sprintf("resourceKind(%d)", int32(k))
	}
}

// nextSeq allocates the next sequence number for the kind. Sequence numbers
// start at zero and are never reused within a run.
func (ws *workflowState) nextSeq(kind resourceKind) uint32 {
	seq := ws.nextSeqs[kind]
	ws.nextSeqs[kind] = seq + 1
	return seq
}

// registerCompletion stores the completion under (kind, seq).
func (ws *workflowState) registerCompletion(kind resourceKind, seq uint32, c *completion) {
	byKind := ws.completions[kind]
	if byKind == nil {
		byKind = make(map[uint32]*completion)
		ws.completions[kind] = byKind
	}
	byKind[seq] = c
}

// consumeCompletion removes and returns the completion registered under
// (kind, seq). A missing entry indicates a protocol bug or a duplicate
// resolution.
func (ws *workflowState) consumeCompletion(kind resourceKind, seq uint32) (*completion, error) {
	byKind := ws.completions[kind]
	c, ok := byKind[seq]
	if !ok {
		return nil, newIllegalStateError("no completion registered for %v sequence %d", kind, seq)
	}
	delete(byKind, seq)
	return c, nil
}

// dropCompletion removes the completion under (kind, seq) without resolving
// it. Used by timer cancellation where the waiter is silently discarded.
func (ws *workflowState) dropCompletion(kind resourceKind, seq uint32) {
	delete(ws.completions[kind], seq)
}

// pushCommand appends a command to the activation's outgoing buffer.
func (ws *workflowState) pushCommand(cmd *WorkflowCommand) {
	ws.commands = append(ws.commands, cmd)
}

// drainCommands returns the buffered commands and resets the buffer.
func (ws *workflowState) drainCommands() []*WorkflowCommand {
	commands := ws.commands
	ws.commands = nil
	return commands
}

// registerCondition stores a blocked condition in registration order.
func (ws *workflowState) registerCondition(cond *blockedCondition) {
	element := ws.blockedConditions.PushBack(cond)
	ws.blockedConditionIndex[cond.seq] = element
}

// tryUnblockConditions evaluates suspended predicates to a fixed point.
// Resolving one condition may make another true, so full passes repeat until
// one makes no progress. Returns the total number of conditions unblocked.
func (ws *workflowState) tryUnblockConditions() int {
	unblocked := 0
	for {
		progress := 0
		for element := ws.blockedConditions.Front(); element != nil; {
			next := element.Next()
			cond := element.Value.(*blockedCondition)
			if cond.predicate() {
				ws.blockedConditions.Remove(element)
				delete(ws.blockedConditionIndex, cond.seq)
				cond.resolve()
				progress++
			}
			element = next
		}
		unblocked += progress
		if progress == 0 {
			return unblocked
		}
	}
}
