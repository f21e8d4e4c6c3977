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

// Package internalbindings exposes the wire-level message types of the
// execution core to hosts that build and parse activations themselves.
//
// ATTENTION!
// The APIs found in this package should never be referenced from workflow
// code. There is no guarantee of compatibility between releases.
package internalbindings

import "github.com/joebowbeer/sdk-core/internal"

type (
	// WorkflowActivation is a unit of work delivered by the orchestration service.
	WorkflowActivation = internal.WorkflowActivation
	// WorkflowActivationJob is a tagged job variant.
	WorkflowActivationJob = internal.WorkflowActivationJob
	// StartWorkflowJob starts the workflow function.
	StartWorkflowJob = internal.StartWorkflowJob
	// FireTimerJob resolves a started timer.
	FireTimerJob = internal.FireTimerJob
	// ResolveActivityJob resolves a scheduled activity.
	ResolveActivityJob = internal.ResolveActivityJob
	// ActivityResolution is the terminal state of an activity.
	ActivityResolution = internal.ActivityResolution
	// ResolveChildWorkflowExecutionJob resolves a started child workflow.
	ResolveChildWorkflowExecutionJob = internal.ResolveChildWorkflowExecutionJob
	// ChildWorkflowResolution is the terminal state of a child workflow.
	ChildWorkflowResolution = internal.ChildWorkflowResolution
	// SignalWorkflowJob delivers an external signal.
	SignalWorkflowJob = internal.SignalWorkflowJob
	// QueryWorkflowJob asks the run to answer a query.
	QueryWorkflowJob = internal.QueryWorkflowJob
	// NotifyHasPatchJob tells a replaying run the history contains a patch.
	NotifyHasPatchJob = internal.NotifyHasPatchJob
	// CancelWorkflowJob requests cancellation of the run.
	CancelWorkflowJob = internal.CancelWorkflowJob
	// RemoveFromCacheJob evicts the run from the worker cache.
	RemoveFromCacheJob = internal.RemoveFromCacheJob
	// ResolveSignalExternalWorkflowJob reports an external-signal outcome.
	ResolveSignalExternalWorkflowJob = internal.ResolveSignalExternalWorkflowJob
	// ResolveRequestCancelExternalWorkflowJob reports an external-cancel outcome.
	ResolveRequestCancelExternalWorkflowJob = internal.ResolveRequestCancelExternalWorkflowJob

	// WorkflowCommand is a tagged command variant.
	WorkflowCommand = internal.WorkflowCommand
	// StartTimerCommand asks the service to fire a timer.
	StartTimerCommand = internal.StartTimerCommand
	// CancelTimerCommand cancels a started timer.
	CancelTimerCommand = internal.CancelTimerCommand
	// ScheduleActivityCommand schedules an activity task.
	ScheduleActivityCommand = internal.ScheduleActivityCommand
	// RequestCancelActivityCommand requests cancellation of an activity.
	RequestCancelActivityCommand = internal.RequestCancelActivityCommand
	// StartChildWorkflowExecutionCommand starts a child workflow.
	StartChildWorkflowExecutionCommand = internal.StartChildWorkflowExecutionCommand
	// RequestCancelExternalWorkflowExecutionCommand cancels an external workflow.
	RequestCancelExternalWorkflowExecutionCommand = internal.RequestCancelExternalWorkflowExecutionCommand
	// SignalExternalWorkflowExecutionCommand signals an external workflow.
	SignalExternalWorkflowExecutionCommand = internal.SignalExternalWorkflowExecutionCommand
	// SetPatchMarkerCommand records a taken patch branch.
	SetPatchMarkerCommand = internal.SetPatchMarkerCommand
	// RespondToQueryCommand answers a query job.
	RespondToQueryCommand = internal.RespondToQueryCommand
	// CompleteWorkflowExecutionCommand reports successful completion.
	CompleteWorkflowExecutionCommand = internal.CompleteWorkflowExecutionCommand
	// FailWorkflowExecutionCommand reports workflow failure.
	FailWorkflowExecutionCommand = internal.FailWorkflowExecutionCommand
	// CancelWorkflowExecutionCommand reports honored cancellation.
	CancelWorkflowExecutionCommand = internal.CancelWorkflowExecutionCommand
	// ContinueAsNewWorkflowExecutionCommand starts a new run of the same workflow ID.
	ContinueAsNewWorkflowExecutionCommand = internal.ContinueAsNewWorkflowExecutionCommand

	// WorkflowActivationCompletion is the reply to a WorkflowActivation.
	WorkflowActivationCompletion = internal.WorkflowActivationCompletion
	// SuccessfulCompletion carries the produced commands.
	SuccessfulCompletion = internal.SuccessfulCompletion
	// FailedCompletion reports the activation could not be processed.
	FailedCompletion = internal.FailedCompletion

	// Failure is the wire representation of an error.
	Failure = internal.Failure
	// ApplicationFailureInfo classifies an application-level failure.
	ApplicationFailureInfo = internal.ApplicationFailureInfo
	// CanceledFailureInfo classifies a cancellation.
	CanceledFailureInfo = internal.CanceledFailureInfo
	// TimeoutFailureInfo classifies a timeout.
	TimeoutFailureInfo = internal.TimeoutFailureInfo
)

// EncodeActivation renders an activation as a delimited message.
func EncodeActivation(activation *WorkflowActivation) ([]byte, error) {
	return internal.EncodeActivation(activation)
}

// DecodeActivation parses a delimited activation message.
func DecodeActivation(data []byte) (*WorkflowActivation, error) {
	return internal.DecodeActivation(data)
}

// EncodeCompletion renders an activation completion as a delimited message.
func EncodeCompletion(completion *WorkflowActivationCompletion) ([]byte, error) {
	return internal.EncodeCompletion(completion)
}

// DecodeCompletion parses a delimited activation completion message.
func DecodeCompletion(data []byte) (*WorkflowActivationCompletion, error) {
	return internal.DecodeCompletion(data)
}
