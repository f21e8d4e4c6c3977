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
	"go.uber.org/zap"
)

type (
	// ConclusionType discriminates ActivationConclusion values.
	ConclusionType string

	// ActivationConclusion is the result of ConcludeActivation. A pending
	// conclusion means the host must service the external calls, feed their
	// results back, and conclude again.
	ActivationConclusion struct {
		Type                 ConclusionType
		PendingExternalCalls []*ExternalCall
		NumBlockedConditions int
		Encoded              []byte
	}
)

const (
	// ConclusionPending reports outstanding external calls.
	ConclusionPending ConclusionType = "pending"
	// ConclusionComplete carries the encoded activation completion.
	ConclusionComplete ConclusionType = "complete"
)

const (
	metricActivations         = "workflow_activations"
	metricActivationLatency   = "workflow_activation_latency"
	metricActivationJobs      = "workflow_activation_jobs"
	metricJobsDropped         = "workflow_activation_jobs_dropped"
	metricConditionsUnblocked = "workflow_conditions_unblocked"
	metricCommandsFlushed     = "workflow_commands_flushed"
	metricWorkflowFailures    = "workflow_failures"
)

// Activate decodes a delimited activation message and drains its jobs through
// the workflow's cooperative scheduler under the activate interceptor chain.
func (r *WorkflowRuntime) Activate(encoded []byte, batchIndex uint32) (*ActivationResult, error) {
	ws := r.state
	start := r.clock.Now()
	defer func() {
		ws.metricsScope.Timer(metricActivationLatency).Record(r.clock.Now().Sub(start))
	}()
	ws.metricsScope.Counter(metricActivations).Inc(1)

	activation, err := DecodeActivation(encoded)
	if err != nil {
		return nil, err
	}
	handler := composeActivate(ws.activateInterceptors(), ws.activate)
	return handler(&ActivateInput{Activation: activation, BatchIndex: batchIndex})
}

func (ws *workflowState) activate(in *ActivateInput) (*ActivationResult, error) {
	if ws.info == nil {
		return nil, newIllegalStateError("activate called before initRuntime")
	}
	activation := in.Activation
	if in.BatchIndex == 0 {
		if activation.Jobs == nil {
			return nil, newTypeError("activation has no jobs")
		}
		// Query-only activations carry no timestamp and must not advance time.
		if activation.Timestamp != nil {
			ws.now = *activation.Timestamp
		}
		ws.info.IsReplaying = activation.IsReplaying
	}

	for _, job := range activation.Jobs {
		name, payload, err := job.variant()
		if err != nil {
			return nil, err
		}
		if ws.completed && name != "queryWorkflow" {
			ws.metricsScope.Counter(metricJobsDropped).Inc(1)
			ws.logger.Debug("Dropping job received after workflow completion.",
				zap.String("Job", name), zap.String(tagRunID, ws.info.RunID))
			continue
		}
		ws.metricsScope.Tagged(map[string]string{"job": name}).Counter(metricActivationJobs).Inc(1)
		if err := ws.dispatchJob(payload); err != nil {
			if !IsCanceledError(err) {
				ws.handleWorkflowFailure(err)
			}
		}
		if err := ws.runScheduler(); err != nil {
			ws.handleWorkflowFailure(err)
		}
	}

	return &ActivationResult{
		ExternalCalls:        ws.getAndResetPendingExternalCalls(),
		NumBlockedConditions: ws.blockedConditions.Len(),
	}, nil
}

// runScheduler executes coroutines until quiescent, re-evaluating suspended
// conditions between passes: resolving one condition can make another true.
func (ws *workflowState) runScheduler() error {
	if ws.dispatcher == nil || ws.evicted {
		return nil
	}
	for {
		if err := ws.dispatcher.ExecuteUntilAllBlocked(); err != nil {
			return err
		}
		n := ws.tryUnblockConditions()
		if n == 0 {
			return nil
		}
		ws.metricsScope.Counter(metricConditionsUnblocked).Inc(int64(n))
	}
}

// handleWorkflowFailure records the terminal failure command and stops the
// run. Subsequent non-query jobs are dropped.
func (ws *workflowState) handleWorkflowFailure(err error) {
	if ws.completed {
		return
	}
	fields := []zap.Field{
		zap.String(tagWorkflowType, ws.info.WorkflowType),
		zap.String(tagRunID, ws.info.RunID),
		zap.Error(err),
	}
	if panicErr, ok := err.(*workflowPanicError); ok {
		fields = append(fields, zap.String("PanicStack", panicErr.StackTrace()))
	}
	ws.logger.Error("Workflow execution failure.", fields...)
	ws.pushCommand(&WorkflowCommand{FailWorkflowExecution: &FailWorkflowExecutionCommand{
		Failure: convertErrorToFailure(err, ws.dataConverter),
	}})
	ws.completed = true
	ws.metricsScope.Counter(metricWorkflowFailures).Inc(1)
}

// TryUnblockConditions evaluates suspended predicates to a fixed point and
// returns the number of conditions unblocked. Hosts normally rely on Activate
// running it between jobs.
func (r *WorkflowRuntime) TryUnblockConditions() int {
	return r.state.tryUnblockConditions()
}

// ConcludeActivation flushes the buffered commands as an encoded completion,
// or reports the external calls the host must service before the activation
// can conclude.
func (r *WorkflowRuntime) ConcludeActivation() (*ActivationConclusion, error) {
	ws := r.state
	if ws.info == nil {
		return nil, newIllegalStateError("concludeActivation called before initRuntime")
	}

	pending := ws.getAndResetPendingExternalCalls()
	if len(pending) > 0 {
		return &ActivationConclusion{
			Type:                 ConclusionPending,
			PendingExternalCalls: pending,
			NumBlockedConditions: ws.blockedConditions.Len(),
		}, nil
	}

	handler := composeConcludeActivation(ws.concludeInterceptors(),
		func(in *ConcludeActivationInput) (*ConcludeActivationInput, error) { return in, nil })
	out, err := handler(&ConcludeActivationInput{Commands: ws.commands})
	if err != nil {
		return nil, err
	}
	commands := out.Commands
	if commands == nil {
		commands = []*WorkflowCommand{}
	}

	encoded, err := EncodeCompletion(&WorkflowActivationCompletion{
		RunID:      ws.info.RunID,
		Successful: &SuccessfulCompletion{Commands: commands},
	})
	if err != nil {
		return nil, err
	}
	ws.metricsScope.Counter(metricCommandsFlushed).Inc(int64(len(commands)))
	ws.commands = nil
	return &ActivationConclusion{Type: ConclusionComplete, Encoded: encoded}, nil
}

func (ws *workflowState) activateInterceptors() []ActivateInterceptor {
	var interceptors []ActivateInterceptor
	for _, wi := range ws.interceptors {
		if wi.Internals != nil {
			interceptors = append(interceptors, wi.Internals.Activate...)
		}
	}
	return interceptors
}

func (ws *workflowState) concludeInterceptors() []ConcludeActivationInterceptor {
	var interceptors []ConcludeActivationInterceptor
	for _, wi := range ws.interceptors {
		if wi.Internals != nil {
			interceptors = append(interceptors, wi.Internals.ConcludeActivation...)
		}
	}
	return interceptors
}
