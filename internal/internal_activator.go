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
	"errors"
	"fmt"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// stackTraceQueryType is answered by the runtime itself with the stack traces
// of all live coroutines.
const stackTraceQueryType = "__stack_trace"

// dispatchJob routes a decoded job to its variant handler.
func (ws *workflowState) dispatchJob(payload interface{}) error {
	switch job := payload.(type) {
	case *StartWorkflowJob:
		return ws.handleStartWorkflow(job)
	case *FireTimerJob:
		return ws.handleFireTimer(job)
	case *ResolveActivityJob:
		return ws.handleResolveActivity(job)
	case *ResolveChildWorkflowExecutionJob:
		return ws.handleResolveChildWorkflowExecution(job)
	case *SignalWorkflowJob:
		return ws.handleSignalWorkflow(job)
	case *QueryWorkflowJob:
		return ws.handleQueryWorkflow(job)
	case *NotifyHasPatchJob:
		return ws.handleNotifyHasPatch(job)
	case *CancelWorkflowJob:
		return ws.handleCancelWorkflow(job)
	case *RemoveFromCacheJob:
		return ws.handleRemoveFromCache(job)
	case *ResolveSignalExternalWorkflowJob:
		return ws.handleResolveSignalExternalWorkflow(job)
	case *ResolveRequestCancelExternalWorkflowJob:
		return ws.handleResolveRequestCancelExternalWorkflow(job)
	default:
		return newTypeError("unknown activation job variant %T", payload)
	}
}

func (ws *workflowState) handleStartWorkflow(job *StartWorkflowJob) error {
	if ws.dispatcher != nil {
		return newIllegalStateError("workflow already started for run %s", ws.info.RunID)
	}
	if ws.workflow == nil {
		return newIllegalStateError("no workflow loaded for run %s", ws.info.RunID)
	}
	if len(job.RandomnessSeed) > 0 {
		ws.random = newAlea(job.RandomnessSeed)
	}
	if job.WorkflowID != "" {
		ws.info.WorkflowID = job.WorkflowID
	}
	if job.CronSchedule != "" {
		ws.info.CronSchedule = job.CronSchedule
	}
	if job.Attempt > 0 {
		ws.info.Attempt = job.Attempt
	}
	workflow := ws.workflow
	ws.dispatcher = newDispatcher(ws, func(ctx Context) {
		result, err := workflow(ctx, job.Arguments)
		ws.completeWorkflow(result, err)
	})
	return nil
}

// completeWorkflow routes the workflow function's return into its terminal
// command.
func (ws *workflowState) completeWorkflow(result *Payloads, err error) {
	if ws.completed {
		return
	}
	if err == nil {
		ws.pushCommand(&WorkflowCommand{CompleteWorkflowExecution: &CompleteWorkflowExecutionCommand{Result: result}})
		ws.completed = true
		return
	}

	var continueAsNewErr *ContinueAsNewError
	if errors.As(err, &continueAsNewErr) {
		if continueAsNewErr.CronSchedule != "" {
			if _, parseErr := cron.ParseStandard(continueAsNewErr.CronSchedule); parseErr != nil {
				ws.handleWorkflowFailure(NewApplicationError(
					fmt.Sprintf("invalid cron schedule %q: %v", continueAsNewErr.CronSchedule, parseErr), true, nil))
				return
			}
		}
		ws.pushCommand(&WorkflowCommand{ContinueAsNewWorkflowExecution: &ContinueAsNewWorkflowExecutionCommand{
			WorkflowType: continueAsNewErr.WorkflowType,
			TaskQueue:    continueAsNewErr.TaskQueue,
			Input:        continueAsNewErr.Input,
			CronSchedule: continueAsNewErr.CronSchedule,
		}})
		ws.completed = true
		return
	}

	if IsCanceledError(err) {
		ws.pushCommand(&WorkflowCommand{CancelWorkflowExecution: &CancelWorkflowExecutionCommand{}})
		ws.completed = true
		return
	}

	ws.handleWorkflowFailure(err)
}

func (ws *workflowState) handleFireTimer(job *FireTimerJob) error {
	c, err := ws.consumeCompletion(resourceKindTimer, job.Seq)
	if err != nil {
		return err
	}
	c.resolve(nil)
	return nil
}

func (ws *workflowState) handleResolveActivity(job *ResolveActivityJob) error {
	c, err := ws.consumeCompletion(resourceKindActivity, job.Seq)
	if err != nil {
		return err
	}
	result := job.Result
	if result == nil {
		return newTypeError("resolveActivity job for sequence %d carries no result", job.Seq)
	}
	switch {
	case result.Failed != nil:
		cause := convertFailureToError(result.Failed, ws.dataConverter)
		c.reject(NewActivityError(fmt.Sprintf("%d", job.Seq), "", "", cause))
	case result.Cancelled != nil:
		c.reject(convertFailureToError(result.Cancelled, ws.dataConverter))
	default:
		c.resolve(result.Completed)
	}
	return nil
}

func (ws *workflowState) handleResolveChildWorkflowExecution(job *ResolveChildWorkflowExecutionJob) error {
	c, err := ws.consumeCompletion(resourceKindChildWorkflow, job.Seq)
	if err != nil {
		return err
	}
	result := job.Result
	if result == nil {
		return newTypeError("resolveChildWorkflowExecution job for sequence %d carries no result", job.Seq)
	}
	switch {
	case result.Failed != nil:
		cause := convertFailureToError(result.Failed, ws.dataConverter)
		c.reject(NewChildWorkflowExecutionError(ws.info.Namespace, "", "", "", cause))
	case result.Cancelled != nil:
		c.reject(convertFailureToError(result.Cancelled, ws.dataConverter))
	default:
		c.resolve(result.Completed)
	}
	return nil
}

func (ws *workflowState) handleSignalWorkflow(job *SignalWorkflowJob) error {
	if job.SignalName == "" {
		return newTypeError("signalWorkflow job carries no signal name")
	}
	ch := ws.signalChannel(job.SignalName)
	if !ch.SendAsync(job.Input) {
		ws.logger.Warn("Dropping signal, channel buffer is full.",
			zap.String("SignalName", job.SignalName))
	}
	return nil
}

func (ws *workflowState) handleQueryWorkflow(job *QueryWorkflowJob) error {
	response := &RespondToQueryCommand{QueryID: job.QueryID}
	if job.QueryType == stackTraceQueryType {
		trace := ""
		if ws.dispatcher != nil {
			trace = ws.dispatcher.StackTrace()
		}
		data, err := ws.dataConverter.ToData(trace)
		if err != nil {
			response.Failed = convertErrorToFailure(err, ws.dataConverter)
		} else {
			response.Succeeded = data
		}
	} else if handler, ok := ws.queryHandlers[job.QueryType]; ok {
		result, err := handler(job.Arguments)
		if err != nil {
			response.Failed = convertErrorToFailure(err, ws.dataConverter)
		} else {
			response.Succeeded = result
		}
	} else {
		response.Failed = convertErrorToFailure(
			newTypeError("unknown query type %q", job.QueryType), ws.dataConverter)
	}
	ws.pushCommand(&WorkflowCommand{RespondToQuery: response})
	return nil
}

func (ws *workflowState) handleNotifyHasPatch(job *NotifyHasPatchJob) error {
	if job.PatchID == "" {
		return newTypeError("notifyHasPatch job carries no patch id")
	}
	ws.knownPatches[job.PatchID] = true
	return nil
}

func (ws *workflowState) handleCancelWorkflow(job *CancelWorkflowJob) error {
	if ws.cancelRequested {
		return nil
	}
	ws.cancelRequested = true
	ws.cancelChannel.Close()
	return nil
}

func (ws *workflowState) handleRemoveFromCache(job *RemoveFromCacheJob) error {
	ws.evicted = true
	if ws.dispatcher != nil {
		ws.dispatcher.Close()
	}
	return nil
}

func (ws *workflowState) handleResolveSignalExternalWorkflow(job *ResolveSignalExternalWorkflowJob) error {
	c, err := ws.consumeCompletion(resourceKindSignalWorkflowExternal, job.Seq)
	if err != nil {
		return err
	}
	if job.Failure != nil {
		c.reject(convertFailureToError(job.Failure, ws.dataConverter))
	} else {
		c.resolve(nil)
	}
	return nil
}

func (ws *workflowState) handleResolveRequestCancelExternalWorkflow(job *ResolveRequestCancelExternalWorkflowJob) error {
	c, err := ws.consumeCompletion(resourceKindCancelWorkflowExternal, job.Seq)
	if err != nil {
		return err
	}
	if job.Failure != nil {
		c.reject(convertFailureToError(job.Failure, ws.dataConverter))
	} else {
		c.resolve(nil)
	}
	return nil
}
