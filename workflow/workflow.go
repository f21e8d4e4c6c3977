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

// Package workflow contains the functions and types workflow code uses to run
// deterministically inside the execution core. Workflow code must use
// workflow.Channel, workflow.Future, and workflow.Go instead of native
// channels, select, and go, and must observe time and randomness only through
// workflow.Now and workflow.Random.
package workflow

import (
	"time"

	"github.com/uber-go/tally"

	"github.com/joebowbeer/sdk-core/internal"
)

type (
	// Context is carried by every workflow coroutine.
	Context = internal.Context

	// Channel must be used by workflow code instead of a native go channel.
	Channel = internal.Channel

	// Future represents a value that becomes ready asynchronously.
	Future = internal.Future

	// Settable is the producing side of a Future.
	Settable = internal.Settable

	// Info is the identity record of the current run.
	Info = internal.WorkflowInfo

	// Payloads is an ordered collection of encoded values.
	Payloads = internal.Payloads

	// TimerHandle identifies a started timer for cancellation.
	TimerHandle = internal.TimerHandle

	// ActivityHandle identifies a scheduled activity for cancellation.
	ActivityHandle = internal.ActivityHandle

	// ChildWorkflowHandle identifies a started child workflow.
	ChildWorkflowHandle = internal.ChildWorkflowHandle

	// QueryHandler answers a query. It must not block or mutate workflow state.
	QueryHandler = internal.QueryHandler

	// DependencyFunc is the workflow-side stub of an injected host dependency.
	DependencyFunc = internal.DependencyFunc

	// ContinueAsNewError ends the current run and starts a new one when
	// returned from the workflow function.
	ContinueAsNewError = internal.ContinueAsNewError

	// CanceledError is returned when an operation was canceled.
	CanceledError = internal.CanceledError

	// Logger is the replay-aware logger available to workflow code.
	Logger = internal.ReplayAwareLogger
)

// Go spawns a child coroutine. It must be used instead of the go keyword.
func Go(ctx Context, f func(ctx Context)) {
	internal.Go(ctx, f)
}

// GoNamed spawns a named child coroutine. The name appears in stack traces.
func GoNamed(ctx Context, name string, f func(ctx Context)) {
	internal.GoNamed(ctx, name, f)
}

// NewChannel creates a new unbuffered Channel.
func NewChannel(ctx Context) Channel {
	return internal.NewChannel(ctx)
}

// NewNamedChannel creates a new unbuffered Channel with a name visible in
// stack traces.
func NewNamedChannel(ctx Context, name string) Channel {
	return internal.NewNamedChannel(ctx, name)
}

// NewBufferedChannel creates a new Channel with the given buffer size.
func NewBufferedChannel(ctx Context, size int) Channel {
	return internal.NewBufferedChannel(ctx, size)
}

// NewFuture creates a Future and its producing Settable.
func NewFuture(ctx Context) (Future, Settable) {
	return internal.NewFuture(ctx)
}

// Now returns the current workflow time. It only advances when an activation
// carries a timestamp.
func Now(ctx Context) time.Time {
	return internal.Now(ctx)
}

// Random returns the next value of the run's seeded generator in [0, 1).
func Random(ctx Context) float64 {
	return internal.Random(ctx)
}

// IsReplaying returns whether the current activation replays recorded
// history. Do not branch workflow logic on it; use Patched for versioning.
func IsReplaying(ctx Context) bool {
	return internal.IsReplaying(ctx)
}

// GetInfo returns the identity record of the current run.
func GetInfo(ctx Context) *Info {
	return internal.GetInfo(ctx)
}

// GetLogger returns a replay-aware logger tagged with the run's identity.
func GetLogger(ctx Context) *Logger {
	return internal.GetLogger(ctx)
}

// GetMetricsScope returns the runtime's metrics scope.
func GetMetricsScope(ctx Context) tally.Scope {
	return internal.GetMetricsScope(ctx)
}

// Sleep pauses the workflow for at least the given duration.
func Sleep(ctx Context, d time.Duration) error {
	return internal.Sleep(ctx, d)
}

// NewTimer starts a timer and returns a future fired by the orchestration
// service, together with a cancellation handle.
func NewTimer(ctx Context, d time.Duration) (Future, TimerHandle) {
	return internal.NewTimer(ctx, d)
}

// CancelTimer cancels a previously started timer. The waiter is silently
// discarded.
func CancelTimer(ctx Context, h TimerHandle) {
	internal.CancelTimer(ctx, h)
}

// Await blocks until the predicate evaluates to true. The predicate is
// re-evaluated opportunistically after every job; it must be side effect free.
func Await(ctx Context, predicate func() bool) error {
	return internal.Await(ctx, predicate)
}

// ExecuteActivity schedules an activity task and returns a future resolved
// with its result.
func ExecuteActivity(ctx Context, activityType string, args ...interface{}) (Future, ActivityHandle) {
	return internal.ExecuteActivity(ctx, activityType, args...)
}

// RequestCancelActivity requests cancellation of a scheduled activity.
func RequestCancelActivity(ctx Context, h ActivityHandle) {
	internal.RequestCancelActivity(ctx, h)
}

// ExecuteChildWorkflow starts a child workflow and returns a future resolved
// with its result.
func ExecuteChildWorkflow(ctx Context, workflowType, workflowID string, args ...interface{}) (Future, ChildWorkflowHandle) {
	return internal.ExecuteChildWorkflow(ctx, workflowType, workflowID, args...)
}

// SignalExternalWorkflow sends a signal to a workflow outside this run.
func SignalExternalWorkflow(ctx Context, namespace, workflowID, runID, signalName string, args ...interface{}) Future {
	return internal.SignalExternalWorkflow(ctx, namespace, workflowID, runID, signalName, args...)
}

// RequestCancelExternalWorkflow requests cancellation of a workflow outside
// this run.
func RequestCancelExternalWorkflow(ctx Context, namespace, workflowID, runID string) Future {
	return internal.RequestCancelExternalWorkflow(ctx, namespace, workflowID, runID)
}

// GetSignalChannel returns the channel that receives signals delivered under
// the given name.
func GetSignalChannel(ctx Context, signalName string) Channel {
	return internal.GetSignalChannel(ctx, signalName)
}

// SetQueryHandler registers a handler for the given query type.
func SetQueryHandler(ctx Context, queryType string, handler QueryHandler) error {
	return internal.SetQueryHandler(ctx, queryType, handler)
}

// Patched is used to version workflow code.
func Patched(ctx Context, patchID string) bool {
	return internal.Patched(ctx, patchID)
}

// Done returns a channel that is closed when cancellation of the run has been
// requested.
func Done(ctx Context) Channel {
	return internal.Done(ctx)
}

// CancelRequested returns whether cancellation of the run has been requested.
func CancelRequested(ctx Context) bool {
	return internal.CancelRequested(ctx)
}

// GetDependency looks up a host dependency stub registered through Inject.
func GetDependency(ctx Context, ifaceName, fnName string) (DependencyFunc, error) {
	return internal.GetDependency(ctx, ifaceName, fnName)
}

// NewContinueAsNewError creates a ContinueAsNewError instance.
func NewContinueAsNewError(ctx Context, workflowType string, args ...interface{}) *ContinueAsNewError {
	return internal.NewContinueAsNewError(ctx, workflowType, args...)
}

// NewCanceledError creates a CanceledError instance.
func NewCanceledError(details ...interface{}) *CanceledError {
	return internal.NewCanceledError(details...)
}

// IsCanceledError returns whether the error is a CanceledError.
func IsCanceledError(err error) bool {
	return internal.IsCanceledError(err)
}

// NewWeakMap fails with a determinism violation: structures that observe
// garbage collection cannot be used in workflow code.
func NewWeakMap(ctx Context) interface{} {
	return internal.NewWeakMap(ctx)
}

// NewWeakSet fails with a determinism violation. See NewWeakMap.
func NewWeakSet(ctx Context) interface{} {
	return internal.NewWeakSet(ctx)
}

// NewWeakRef fails with a determinism violation. See NewWeakMap.
func NewWeakRef(ctx Context) interface{} {
	return internal.NewWeakRef(ctx)
}
