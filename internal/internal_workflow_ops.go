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

import (
	"fmt"
	"time"
)

type (
	// TimerHandle identifies a started timer for cancellation.
	TimerHandle uint32

	// ActivityHandle identifies a scheduled activity for cancellation.
	ActivityHandle uint32

	// ChildWorkflowHandle identifies a started child workflow.
	ChildWorkflowHandle uint32

	// QueryHandler answers a query. It must not block or mutate workflow state.
	QueryHandler func(args *Payloads) (*Payloads, error)
)

// NewTimer starts a timer and returns a future that becomes ready when the
// orchestration service fires it, together with a cancellation handle.
func NewTimer(ctx Context, d time.Duration) (Future, TimerHandle) {
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindTimer)
	future, settable := NewFuture(ctx)
	ws.registerCompletion(resourceKindTimer, seq, &completion{
		resolve: func(interface{}) { settable.Set(nil, nil) },
		reject:  func(error) {},
	})
	ws.pushCommand(&WorkflowCommand{StartTimer: &StartTimerCommand{Seq: seq, Duration: d}})
	return future, TimerHandle(seq)
}

// Sleep pauses the workflow for at least the given duration.
func Sleep(ctx Context, d time.Duration) error {
	future, _ := NewTimer(ctx, d)
	return future.Get(ctx, nil)
}

// CancelTimer cancels a previously started timer. Cancellation is a silent
// drop: the waiter is discarded without resolution.
func CancelTimer(ctx Context, h TimerHandle) {
	ws := ctx.state()
	ws.nextSeq(resourceKindTimer)
	ws.dropCompletion(resourceKindTimer, uint32(h))
	ws.pushCommand(&WorkflowCommand{CancelTimer: &CancelTimerCommand{Seq: uint32(h)}})
}

// Await blocks until the predicate evaluates to true. The predicate is
// re-evaluated opportunistically after every job; it must be side effect free.
func Await(ctx Context, predicate func() bool) error {
	if predicate() {
		return nil
	}
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindCondition)
	future, settable := NewFuture(ctx)
	ws.registerCondition(&blockedCondition{
		seq:       seq,
		predicate: predicate,
		resolve:   func() { settable.Set(nil, nil) },
	})
	return future.Get(ctx, nil)
}

// ExecuteActivity schedules an activity task and returns a future resolved
// with its result, together with a cancellation handle.
func ExecuteActivity(ctx Context, activityType string, args ...interface{}) (Future, ActivityHandle) {
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindActivity)
	future, settable := NewFuture(ctx)
	ws.registerCompletion(resourceKindActivity, seq, &completion{
		resolve: func(result interface{}) { settable.Set(result, nil) },
		reject:  func(err error) { settable.SetError(err) },
	})
	input, err := encodeArgs(ws.dataConverter, args)
	if err != nil {
		panic(err)
	}
	ws.pushCommand(&WorkflowCommand{ScheduleActivity: &ScheduleActivityCommand{
		Seq:          seq,
		ActivityID:   fmt.Sprintf("%d", seq),
		ActivityType: activityType,
		TaskQueue:    ws.info.TaskQueue,
		Arguments:    input,
	}})
	return future, ActivityHandle(seq)
}

// RequestCancelActivity requests cancellation of a scheduled activity. The
// activity future is rejected by the matching resolveActivity job, not here.
func RequestCancelActivity(ctx Context, h ActivityHandle) {
	ctx.state().pushCommand(&WorkflowCommand{
		RequestCancelActivity: &RequestCancelActivityCommand{Seq: uint32(h)},
	})
}

// ExecuteChildWorkflow starts a child workflow and returns a future resolved
// with its result.
func ExecuteChildWorkflow(ctx Context, workflowType, workflowID string, args ...interface{}) (Future, ChildWorkflowHandle) {
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindChildWorkflow)
	future, settable := NewFuture(ctx)
	ws.registerCompletion(resourceKindChildWorkflow, seq, &completion{
		resolve: func(result interface{}) { settable.Set(result, nil) },
		reject:  func(err error) { settable.SetError(err) },
	})
	input, err := encodeArgs(ws.dataConverter, args)
	if err != nil {
		panic(err)
	}
	if workflowID == "" {
		workflowID = fmt.Sprintf("%s-child-%d", ws.info.WorkflowID, seq)
	}
	ws.pushCommand(&WorkflowCommand{StartChildWorkflowExecution: &StartChildWorkflowExecutionCommand{
		Seq:          seq,
		WorkflowID:   workflowID,
		WorkflowType: workflowType,
		TaskQueue:    ws.info.TaskQueue,
		Input:        input,
	}})
	return future, ChildWorkflowHandle(seq)
}

// SignalExternalWorkflow sends a signal to a workflow outside this run. The
// returned future becomes ready when the service acknowledges delivery.
func SignalExternalWorkflow(ctx Context, namespace, workflowID, runID, signalName string, args ...interface{}) Future {
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindSignalWorkflowExternal)
	future, settable := NewFuture(ctx)
	ws.registerCompletion(resourceKindSignalWorkflowExternal, seq, &completion{
		resolve: func(interface{}) { settable.Set(nil, nil) },
		reject:  func(err error) { settable.SetError(err) },
	})
	input, err := encodeArgs(ws.dataConverter, args)
	if err != nil {
		panic(err)
	}
	ws.pushCommand(&WorkflowCommand{SignalExternalWorkflowExecution: &SignalExternalWorkflowExecutionCommand{
		Seq:        seq,
		Namespace:  namespace,
		WorkflowID: workflowID,
		RunID:      runID,
		SignalName: signalName,
		Input:      input,
	}})
	return future
}

// RequestCancelExternalWorkflow requests cancellation of a workflow outside
// this run. The returned future becomes ready when the service acknowledges
// the request.
func RequestCancelExternalWorkflow(ctx Context, namespace, workflowID, runID string) Future {
	ws := ctx.state()
	seq := ws.nextSeq(resourceKindCancelWorkflowExternal)
	future, settable := NewFuture(ctx)
	ws.registerCompletion(resourceKindCancelWorkflowExternal, seq, &completion{
		resolve: func(interface{}) { settable.Set(nil, nil) },
		reject:  func(err error) { settable.SetError(err) },
	})
	ws.pushCommand(&WorkflowCommand{RequestCancelExternalWorkflowExecution: &RequestCancelExternalWorkflowExecutionCommand{
		Seq:        seq,
		Namespace:  namespace,
		WorkflowID: workflowID,
		RunID:      runID,
	}})
	return future
}

// GetSignalChannel returns the channel that receives signals delivered under
// the given name. The channel is created on first use from either side.
func GetSignalChannel(ctx Context, signalName string) Channel {
	return ctx.state().signalChannel(signalName)
}

func (ws *workflowState) signalChannel(name string) *channelImpl {
	if ch, ok := ws.signalChannels[name]; ok {
		return ch
	}
	ch := &channelImpl{name: fmt.Sprintf("signal-%s", name), size: defaultSignalChannelSize}
	ws.signalChannels[name] = ch
	return ch
}

// SetQueryHandler registers a handler for the given query type.
func SetQueryHandler(ctx Context, queryType string, handler QueryHandler) error {
	if queryType == "" {
		return newTypeError("query type is required")
	}
	ctx.state().queryHandlers[queryType] = handler
	return nil
}

// Patched is used to version workflow code. When not replaying it records the
// patch, emits a marker, and returns true. When replaying it returns whether
// the recorded history contains the patch.
func Patched(ctx Context, patchID string) bool {
	ws := ctx.state()
	if ws.knownPatches[patchID] {
		return true
	}
	if ws.info.IsReplaying {
		return false
	}
	ws.knownPatches[patchID] = true
	ws.pushCommand(&WorkflowCommand{SetPatchMarker: &SetPatchMarkerCommand{PatchID: patchID}})
	return true
}

// Done returns a channel that is closed when cancellation of the run has been
// requested.
func Done(ctx Context) Channel {
	return ctx.state().cancelChannel
}

// CancelRequested returns whether cancellation of the run has been requested.
func CancelRequested(ctx Context) bool {
	return ctx.state().cancelRequested
}
