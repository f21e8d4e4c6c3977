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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// WorkflowActivation is a unit of work delivered by the orchestration
	// service. It advances a single workflow run by the ordered list of jobs
	// it carries.
	WorkflowActivation struct {
		RunID       string                   `json:"runId"`
		Timestamp   *time.Time               `json:"timestamp,omitempty"`
		IsReplaying bool                     `json:"isReplaying"`
		Jobs        []*WorkflowActivationJob `json:"jobs"`
	}

	// WorkflowActivationJob is a tagged variant. Exactly one field must be set.
	WorkflowActivationJob struct {
		StartWorkflow                        *StartWorkflowJob                        `json:"startWorkflow,omitempty"`
		FireTimer                            *FireTimerJob                            `json:"fireTimer,omitempty"`
		ResolveActivity                      *ResolveActivityJob                      `json:"resolveActivity,omitempty"`
		ResolveChildWorkflowExecution        *ResolveChildWorkflowExecutionJob        `json:"resolveChildWorkflowExecution,omitempty"`
		SignalWorkflow                       *SignalWorkflowJob                       `json:"signalWorkflow,omitempty"`
		QueryWorkflow                        *QueryWorkflowJob                        `json:"queryWorkflow,omitempty"`
		NotifyHasPatch                       *NotifyHasPatchJob                       `json:"notifyHasPatch,omitempty"`
		CancelWorkflow                       *CancelWorkflowJob                       `json:"cancelWorkflow,omitempty"`
		RemoveFromCache                      *RemoveFromCacheJob                      `json:"removeFromCache,omitempty"`
		ResolveSignalExternalWorkflow        *ResolveSignalExternalWorkflowJob        `json:"resolveSignalExternalWorkflow,omitempty"`
		ResolveRequestCancelExternalWorkflow *ResolveRequestCancelExternalWorkflowJob `json:"resolveRequestCancelExternalWorkflow,omitempty"`
	}

	// StartWorkflowJob starts the workflow function for this run.
	StartWorkflowJob struct {
		WorkflowType   string    `json:"workflowType"`
		WorkflowID     string    `json:"workflowId"`
		Arguments      *Payloads `json:"arguments,omitempty"`
		RandomnessSeed []byte    `json:"randomnessSeed,omitempty"`
		CronSchedule   string    `json:"cronSchedule,omitempty"`
		Attempt        int32     `json:"attempt,omitempty"`
	}

	// FireTimerJob resolves the timer registered under Seq.
	FireTimerJob struct {
		Seq uint32 `json:"seq"`
	}

	// ActivityResolution carries the terminal state of an activity.
	// Exactly one field is set.
	ActivityResolution struct {
		Completed *Payloads `json:"completed,omitempty"`
		Failed    *Failure  `json:"failed,omitempty"`
		Cancelled *Failure  `json:"cancelled,omitempty"`
	}

	// ResolveActivityJob resolves the activity registered under Seq.
	ResolveActivityJob struct {
		Seq    uint32              `json:"seq"`
		Result *ActivityResolution `json:"result"`
	}

	// ChildWorkflowResolution carries the terminal state of a child workflow.
	ChildWorkflowResolution struct {
		Completed *Payloads `json:"completed,omitempty"`
		Failed    *Failure  `json:"failed,omitempty"`
		Cancelled *Failure  `json:"cancelled,omitempty"`
	}

	// ResolveChildWorkflowExecutionJob resolves the child workflow registered under Seq.
	ResolveChildWorkflowExecutionJob struct {
		Seq    uint32                   `json:"seq"`
		Result *ChildWorkflowResolution `json:"result"`
	}

	// SignalWorkflowJob delivers an external signal into the run.
	SignalWorkflowJob struct {
		SignalName string    `json:"signalName"`
		Input      *Payloads `json:"input,omitempty"`
	}

	// QueryWorkflowJob asks the run to answer a query without mutating state.
	QueryWorkflowJob struct {
		QueryID   string    `json:"queryId"`
		QueryType string    `json:"queryType"`
		Arguments *Payloads `json:"arguments,omitempty"`
	}

	// NotifyHasPatchJob tells a replaying run that the history contains the patch.
	NotifyHasPatchJob struct {
		PatchID string `json:"patchId"`
	}

	// CancelWorkflowJob requests cancellation of the run.
	CancelWorkflowJob struct {
		Reason string `json:"reason,omitempty"`
	}

	// RemoveFromCacheJob evicts the run from the worker cache.
	RemoveFromCacheJob struct {
		Reason string `json:"reason,omitempty"`
	}

	// ResolveSignalExternalWorkflowJob reports the outcome of a signal sent to
	// an external workflow. A nil Failure means success.
	ResolveSignalExternalWorkflowJob struct {
		Seq     uint32   `json:"seq"`
		Failure *Failure `json:"failure,omitempty"`
	}

	// ResolveRequestCancelExternalWorkflowJob reports the outcome of a
	// cancellation request sent to an external workflow.
	ResolveRequestCancelExternalWorkflowJob struct {
		Seq     uint32   `json:"seq"`
		Failure *Failure `json:"failure,omitempty"`
	}

	// WorkflowCommand is a tagged variant emitted by workflow code and flushed
	// to the orchestration service at activation conclusion. Exactly one field
	// is set.
	WorkflowCommand struct {
		StartTimer                             *StartTimerCommand                             `json:"startTimer,omitempty"`
		CancelTimer                            *CancelTimerCommand                            `json:"cancelTimer,omitempty"`
		ScheduleActivity                       *ScheduleActivityCommand                       `json:"scheduleActivity,omitempty"`
		RequestCancelActivity                  *RequestCancelActivityCommand                  `json:"requestCancelActivity,omitempty"`
		StartChildWorkflowExecution            *StartChildWorkflowExecutionCommand            `json:"startChildWorkflowExecution,omitempty"`
		RequestCancelExternalWorkflowExecution *RequestCancelExternalWorkflowExecutionCommand `json:"requestCancelExternalWorkflowExecution,omitempty"`
		SignalExternalWorkflowExecution        *SignalExternalWorkflowExecutionCommand        `json:"signalExternalWorkflowExecution,omitempty"`
		SetPatchMarker                         *SetPatchMarkerCommand                         `json:"setPatchMarker,omitempty"`
		RespondToQuery                         *RespondToQueryCommand                         `json:"respondToQuery,omitempty"`
		CompleteWorkflowExecution              *CompleteWorkflowExecutionCommand              `json:"completeWorkflowExecution,omitempty"`
		FailWorkflowExecution                  *FailWorkflowExecutionCommand                  `json:"failWorkflowExecution,omitempty"`
		CancelWorkflowExecution                *CancelWorkflowExecutionCommand                `json:"cancelWorkflowExecution,omitempty"`
		ContinueAsNewWorkflowExecution         *ContinueAsNewWorkflowExecutionCommand         `json:"continueAsNewWorkflowExecution,omitempty"`
	}

	// StartTimerCommand asks the service to fire a timer after Duration.
	StartTimerCommand struct {
		Seq      uint32        `json:"seq"`
		Duration time.Duration `json:"duration"`
	}

	// CancelTimerCommand cancels a previously started timer.
	CancelTimerCommand struct {
		Seq uint32 `json:"seq"`
	}

	// ScheduleActivityCommand schedules an activity task.
	ScheduleActivityCommand struct {
		Seq          uint32    `json:"seq"`
		ActivityID   string    `json:"activityId"`
		ActivityType string    `json:"activityType"`
		TaskQueue    string    `json:"taskQueue,omitempty"`
		Arguments    *Payloads `json:"arguments,omitempty"`
	}

	// RequestCancelActivityCommand requests cancellation of a scheduled activity.
	RequestCancelActivityCommand struct {
		Seq uint32 `json:"seq"`
	}

	// StartChildWorkflowExecutionCommand starts a child workflow.
	StartChildWorkflowExecutionCommand struct {
		Seq          uint32    `json:"seq"`
		WorkflowID   string    `json:"workflowId"`
		WorkflowType string    `json:"workflowType"`
		TaskQueue    string    `json:"taskQueue,omitempty"`
		Input        *Payloads `json:"input,omitempty"`
	}

	// RequestCancelExternalWorkflowExecutionCommand requests cancellation of a
	// workflow outside this run.
	RequestCancelExternalWorkflowExecutionCommand struct {
		Seq        uint32 `json:"seq"`
		Namespace  string `json:"namespace,omitempty"`
		WorkflowID string `json:"workflowId"`
		RunID      string `json:"runId,omitempty"`
	}

	// SignalExternalWorkflowExecutionCommand signals a workflow outside this run.
	SignalExternalWorkflowExecutionCommand struct {
		Seq        uint32    `json:"seq"`
		Namespace  string    `json:"namespace,omitempty"`
		WorkflowID string    `json:"workflowId"`
		RunID      string    `json:"runId,omitempty"`
		SignalName string    `json:"signalName"`
		Input      *Payloads `json:"input,omitempty"`
	}

	// SetPatchMarkerCommand records that the workflow took the patched branch.
	SetPatchMarkerCommand struct {
		PatchID    string `json:"patchId"`
		Deprecated bool   `json:"deprecated,omitempty"`
	}

	// RespondToQueryCommand answers a QueryWorkflow job.
	RespondToQueryCommand struct {
		QueryID   string    `json:"queryId"`
		Succeeded *Payloads `json:"succeeded,omitempty"`
		Failed    *Failure  `json:"failed,omitempty"`
	}

	// CompleteWorkflowExecutionCommand reports successful workflow completion.
	CompleteWorkflowExecutionCommand struct {
		Result *Payloads `json:"result,omitempty"`
	}

	// FailWorkflowExecutionCommand reports workflow failure.
	FailWorkflowExecutionCommand struct {
		Failure *Failure `json:"failure"`
	}

	// CancelWorkflowExecutionCommand reports that the workflow honored a
	// cancellation request.
	CancelWorkflowExecutionCommand struct{}

	// ContinueAsNewWorkflowExecutionCommand ends this run and starts a new one
	// with the same workflow ID.
	ContinueAsNewWorkflowExecutionCommand struct {
		WorkflowType string    `json:"workflowType"`
		TaskQueue    string    `json:"taskQueue,omitempty"`
		Input        *Payloads `json:"input,omitempty"`
		CronSchedule string    `json:"cronSchedule,omitempty"`
	}

	// WorkflowActivationCompletion is the reply to a WorkflowActivation.
	// Exactly one of Successful or Failed is set.
	WorkflowActivationCompletion struct {
		RunID      string                `json:"runId"`
		Successful *SuccessfulCompletion `json:"successful,omitempty"`
		Failed     *FailedCompletion     `json:"failed,omitempty"`
	}

	// SuccessfulCompletion carries the commands produced by the activation.
	SuccessfulCompletion struct {
		Commands []*WorkflowCommand `json:"commands"`
	}

	// FailedCompletion reports that the activation itself could not be processed.
	FailedCompletion struct {
		Failure *Failure `json:"failure"`
	}
)

// variant returns the name and payload of the single set field.
// A job with zero or multiple set fields violates the activation shape.
func (j *WorkflowActivationJob) variant() (string, interface{}, error) {
	var name string
	var payload interface{}
	set := 0
	pick := func(n string, p interface{}) {
		set++
		name = n
		payload = p
	}
	if j.StartWorkflow != nil {
		pick("startWorkflow", j.StartWorkflow)
	}
	if j.FireTimer != nil {
		pick("fireTimer", j.FireTimer)
	}
	if j.ResolveActivity != nil {
		pick("resolveActivity", j.ResolveActivity)
	}
	if j.ResolveChildWorkflowExecution != nil {
		pick("resolveChildWorkflowExecution", j.ResolveChildWorkflowExecution)
	}
	if j.SignalWorkflow != nil {
		pick("signalWorkflow", j.SignalWorkflow)
	}
	if j.QueryWorkflow != nil {
		pick("queryWorkflow", j.QueryWorkflow)
	}
	if j.NotifyHasPatch != nil {
		pick("notifyHasPatch", j.NotifyHasPatch)
	}
	if j.CancelWorkflow != nil {
		pick("cancelWorkflow", j.CancelWorkflow)
	}
	if j.RemoveFromCache != nil {
		pick("removeFromCache", j.RemoveFromCache)
	}
	if j.ResolveSignalExternalWorkflow != nil {
		pick("resolveSignalExternalWorkflow", j.ResolveSignalExternalWorkflow)
	}
	if j.ResolveRequestCancelExternalWorkflow != nil {
		pick("resolveRequestCancelExternalWorkflow", j.ResolveRequestCancelExternalWorkflow)
	}
	switch set {
	case 1:
		return name, payload, nil
	case 0:
		return "", nil, newTypeError("activation job has no variant set")
	default:
		return "", nil, newTypeError("activation job has %d variants set, want exactly one", set)
	}
}

// encodeDelimited renders v as a uvarint length-delimited JSON frame.
func encodeDelimited(v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	header := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(header, uint64(len(body)))
	return append(header[:n], body...), nil
}

// decodeDelimited parses a single uvarint length-delimited JSON frame into v.
func decodeDelimited(data []byte, v interface{}) error {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return fmt.Errorf("invalid length delimiter")
	}
	body := data[n:]
	if uint64(len(body)) < size {
		return fmt.Errorf("truncated message: want %d bytes, have %d", size, len(body))
	}
	return json.Unmarshal(body[:size], v)
}

// EncodeActivation renders an activation as a delimited message. Hosts use it
// to feed the runtime; the service-facing encoding is its concern.
func EncodeActivation(activation *WorkflowActivation) ([]byte, error) {
	return encodeDelimited(activation)
}

// DecodeActivation parses a delimited activation message.
func DecodeActivation(data []byte) (*WorkflowActivation, error) {
	activation := &WorkflowActivation{}
	if err := decodeDelimited(data, activation); err != nil {
		return nil, newTypeError("malformed activation: %v", err)
	}
	return activation, nil
}

// EncodeCompletion renders an activation completion as a delimited message.
func EncodeCompletion(completion *WorkflowActivationCompletion) ([]byte, error) {
	return encodeDelimited(completion)
}

// DecodeCompletion parses a delimited activation completion message.
func DecodeCompletion(data []byte) (*WorkflowActivationCompletion, error) {
	completion := &WorkflowActivationCompletion{}
	if err := decodeDelimited(data, completion); err != nil {
		return nil, newTypeError("malformed activation completion: %v", err)
	}
	return completion, nil
}
