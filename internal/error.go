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
	"reflect"
)

/*
Errors surfaced by the runtime fall into a few kinds. Host-facing API misuse is
reported as *IllegalStateError (operation invoked out of order, unknown
completion sequence) or *TypeError (a decoded message or loaded module does not
have the expected shape). Workflow-facing failures are *ApplicationError
(workflow code returned or threw an error), *CanceledError (the workflow or an
awaited resource was canceled), *PanicError (workflow code panicked), and
*DeterminismViolationError (workflow code touched a primitive whose behavior
cannot be reproduced on replay, such as a weak reference).

Workflow code can inspect awaited failures using errors.As:

	future, _ := workflow.ExecuteActivity(ctx, "ProcessOrder")
	err := future.Get(ctx, nil)
	var canceledErr *CanceledError
	if errors.As(err, &canceledErr) {
		// handle cancellation
	}

Errors crossing the activation boundary are converted to *Failure values and
back with convertErrorToFailure and convertFailureToError, preserving the
chain of causes.
*/

type (
	// TimeoutType classifies a timeout failure.
	TimeoutType int32

	// IllegalStateError indicates a runtime operation was invoked out of order
	// or referenced a sequence number with no registered completion.
	IllegalStateError struct {
		message string
	}

	// TypeError indicates a decoded message or loaded module violates the
	// expected shape.
	TypeError struct {
		message string
	}

	// DeterminismViolationError indicates workflow code exhibited behavior that
	// cannot be reproduced on replay.
	DeterminismViolationError struct {
		message string
	}

	// ApplicationError is returned from workflow and activity implementations
	// with a message and optional details.
	ApplicationError struct {
		coreError
		message      string
		errType      string
		nonRetryable bool
		cause        error
		details      Values
		stackTrace   string
	}

	// TimeoutError is returned when an activity or child workflow timed out.
	TimeoutError struct {
		coreError
		timeoutType          TimeoutType
		cause                error
		lastHeartbeatDetails Values
	}

	// CanceledError is returned when an operation was canceled.
	CanceledError struct {
		coreError
		details Values
	}

	// TerminatedError is returned when a workflow was terminated.
	TerminatedError struct {
		coreError
	}

	// PanicError contains information about a panicked workflow task.
	PanicError struct {
		coreError
		value      interface{}
		stackTrace string
	}

	// workflowPanicError distinguishes a go panic in workflow code from a
	// PanicError returned by a workflow function.
	workflowPanicError struct {
		value      interface{}
		stackTrace string
	}

	// ContinueAsNewError, when returned from the workflow function, ends the
	// current run and starts a new one with the same workflow ID.
	ContinueAsNewError struct {
		WorkflowType string
		Input        *Payloads
		TaskQueue    string
		CronSchedule string
	}

	// ActivityError is rejected into an activity future when the activity
	// failed. Unwrap to get the actual cause.
	ActivityError struct {
		coreError
		activityID   string
		activityType string
		identity     string
		cause        error
	}

	// ChildWorkflowExecutionError is rejected into a child workflow future when
	// the child failed. Unwrap to get the actual cause.
	ChildWorkflowExecutionError struct {
		coreError
		namespace    string
		workflowID   string
		runID        string
		workflowType string
		cause        error
	}

	// WorkflowExecutionError is the terminal error of a workflow run.
	WorkflowExecutionError struct {
		workflowID   string
		runID        string
		workflowType string
		cause        error
	}

	coreError struct {
		originalFailure *Failure
	}

	failureHolder interface {
		setFailure(*Failure)
		failure() *Failure
	}

	// Failure is the wire representation of an error. One of the *Info fields
	// classifies it; Cause chains nested failures.
	Failure struct {
		Message                           string                             `json:"message,omitempty"`
		Source                            string                             `json:"source,omitempty"`
		StackTrace                        string                             `json:"stackTrace,omitempty"`
		Cause                             *Failure                           `json:"cause,omitempty"`
		ApplicationFailureInfo            *ApplicationFailureInfo            `json:"applicationFailureInfo,omitempty"`
		CanceledFailureInfo               *CanceledFailureInfo               `json:"canceledFailureInfo,omitempty"`
		TimeoutFailureInfo                *TimeoutFailureInfo                `json:"timeoutFailureInfo,omitempty"`
		TerminatedFailureInfo             *TerminatedFailureInfo             `json:"terminatedFailureInfo,omitempty"`
		ActivityFailureInfo               *ActivityFailureInfo               `json:"activityFailureInfo,omitempty"`
		ChildWorkflowExecutionFailureInfo *ChildWorkflowExecutionFailureInfo `json:"childWorkflowExecutionFailureInfo,omitempty"`
	}

	// ApplicationFailureInfo classifies an application-level failure.
	ApplicationFailureInfo struct {
		Type         string    `json:"type,omitempty"`
		NonRetryable bool      `json:"nonRetryable,omitempty"`
		Details      *Payloads `json:"details,omitempty"`
	}

	// CanceledFailureInfo classifies a cancellation.
	CanceledFailureInfo struct {
		Details *Payloads `json:"details,omitempty"`
	}

	// TimeoutFailureInfo classifies a timeout.
	TimeoutFailureInfo struct {
		TimeoutType          TimeoutType `json:"timeoutType,omitempty"`
		LastHeartbeatDetails *Payloads   `json:"lastHeartbeatDetails,omitempty"`
	}

	// TerminatedFailureInfo classifies a termination.
	TerminatedFailureInfo struct{}

	// ActivityFailureInfo classifies an activity failure.
	ActivityFailureInfo struct {
		ActivityID   string `json:"activityId,omitempty"`
		ActivityType string `json:"activityType,omitempty"`
		Identity     string `json:"identity,omitempty"`
	}

	// ChildWorkflowExecutionFailureInfo classifies a child workflow failure.
	ChildWorkflowExecutionFailureInfo struct {
		Namespace    string `json:"namespace,omitempty"`
		WorkflowID   string `json:"workflowId,omitempty"`
		RunID        string `json:"runId,omitempty"`
		WorkflowType string `json:"workflowType,omitempty"`
	}
)

const (
	// TimeoutTypeUnspecified is an unclassified timeout.
	TimeoutTypeUnspecified TimeoutType = iota
	// TimeoutTypeStartToClose is a start-to-close timeout.
	TimeoutTypeStartToClose
	// TimeoutTypeScheduleToStart is a schedule-to-start timeout.
	TimeoutTypeScheduleToStart
	// TimeoutTypeScheduleToClose is a schedule-to-close timeout.
	TimeoutTypeScheduleToClose
	// TimeoutTypeHeartbeat is a heartbeat timeout.
	TimeoutTypeHeartbeat
)

const failureSourceName = "CoreSDK"

func newIllegalStateError(format string, args ...interface{}) *IllegalStateError {
	return &IllegalStateError{message: fmt.Sprintf(format, args...)}
}

func newTypeError(format string, args ...interface{}) *TypeError {
	return &TypeError{message: fmt.Sprintf(format, args...)}
}

func newDeterminismViolationError(format string, args ...interface{}) *DeterminismViolationError {
	return &DeterminismViolationError{message: fmt.Sprintf(format, args...)}
}

// NewApplicationError creates a new instance of *ApplicationError with message
// and optional details.
func NewApplicationError(message string, nonRetryable bool, cause error, details ...interface{}) *ApplicationError {
	applicationErr := &ApplicationError{
		message:      message,
		errType:      getErrorType(&ApplicationError{}),
		nonRetryable: nonRetryable,
		cause:        cause,
	}

	// When the error is reconstructed from a failure the details are already
	// encoded and ready to be decoded by calling Get.
	if len(details) == 1 {
		if d, ok := details[0].(*EncodedValues); ok {
			applicationErr.details = d
			return applicationErr
		}
	}

	applicationErr.details = ErrorDetailsValues(details)
	return applicationErr
}

// NewCanceledError creates a CanceledError instance.
func NewCanceledError(details ...interface{}) *CanceledError {
	if len(details) == 1 {
		if d, ok := details[0].(*EncodedValues); ok {
			return &CanceledError{details: d}
		}
	}
	return &CanceledError{details: ErrorDetailsValues(details)}
}

// NewTimeoutError creates a TimeoutError instance.
func NewTimeoutError(timeoutType TimeoutType, cause error, lastHeartbeatDetails ...interface{}) *TimeoutError {
	timeoutErr := &TimeoutError{
		timeoutType: timeoutType,
		cause:       cause,
	}

	if len(lastHeartbeatDetails) == 1 {
		if d, ok := lastHeartbeatDetails[0].(*EncodedValues); ok {
			timeoutErr.lastHeartbeatDetails = d
			return timeoutErr
		}
	}
	timeoutErr.lastHeartbeatDetails = ErrorDetailsValues(lastHeartbeatDetails)
	return timeoutErr
}

// NewActivityError creates an ActivityError instance.
func NewActivityError(activityID, activityType, identity string, cause error) *ActivityError {
	return &ActivityError{
		activityID:   activityID,
		activityType: activityType,
		identity:     identity,
		cause:        cause,
	}
}

// NewChildWorkflowExecutionError creates a ChildWorkflowExecutionError instance.
func NewChildWorkflowExecutionError(namespace, workflowID, runID, workflowType string, cause error) *ChildWorkflowExecutionError {
	return &ChildWorkflowExecutionError{
		namespace:    namespace,
		workflowID:   workflowID,
		runID:        runID,
		workflowType: workflowType,
		cause:        cause,
	}
}

// NewWorkflowExecutionError creates a WorkflowExecutionError instance.
func NewWorkflowExecutionError(workflowID, runID, workflowType string, cause error) *WorkflowExecutionError {
	return &WorkflowExecutionError{
		workflowID:   workflowID,
		runID:        runID,
		workflowType: workflowType,
		cause:        cause,
	}
}

func newPanicError(value interface{}, stackTrace string) *PanicError {
	return &PanicError{value: value, stackTrace: stackTrace}
}

func newWorkflowPanicError(value interface{}, stackTrace string) *workflowPanicError {
	return &workflowPanicError{value: value, stackTrace: stackTrace}
}

func newTerminatedError() *TerminatedError {
	return &TerminatedError{}
}

func (e *coreError) setFailure(f *Failure) {
	e.originalFailure = f
}

func (e *coreError) failure() *Failure {
	return e.originalFailure
}

// Error from error interface.
func (e *IllegalStateError) Error() string {
	return e.message
}

// Error from error interface.
func (e *TypeError) Error() string {
	return e.message
}

// Error from error interface.
func (e *DeterminismViolationError) Error() string {
	return e.message
}

// Error from error interface.
func (e *ApplicationError) Error() string {
	return e.message
}

// Type returns the error type represented as string.
func (e *ApplicationError) Type() string {
	return e.errType
}

// HasDetails returns whether this error has strong typed detail data.
func (e *ApplicationError) HasDetails() bool {
	return e.details != nil && e.details.HasValues()
}

// Details extracts strong typed detail data of this error. If there are no
// details it returns ErrNoData.
func (e *ApplicationError) Details(d ...interface{}) error {
	if !e.HasDetails() {
		return ErrNoData
	}
	return e.details.Get(d...)
}

// NonRetryable indicates if the error is not retryable.
func (e *ApplicationError) NonRetryable() bool {
	return e.nonRetryable
}

func (e *ApplicationError) Unwrap() error {
	return e.cause
}

// Error from error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TimeoutType: %v, Cause: %v", e.timeoutType, e.cause)
}

func (e *TimeoutError) Unwrap() error {
	return e.cause
}

// TimeoutType returns the timeout type of this error.
func (e *TimeoutError) TimeoutType() TimeoutType {
	return e.timeoutType
}

// Error from error interface.
func (e *CanceledError) Error() string {
	return "Canceled"
}

// HasDetails returns whether this error has strong typed detail data.
func (e *CanceledError) HasDetails() bool {
	return e.details != nil && e.details.HasValues()
}

// Details extracts strong typed detail data of this error.
func (e *CanceledError) Details(d ...interface{}) error {
	if !e.HasDetails() {
		return ErrNoData
	}
	return e.details.Get(d...)
}

// Error from error interface.
func (e *TerminatedError) Error() string {
	return "Terminated"
}

// Error from error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%v", e.value)
}

// StackTrace returns the stack trace of the panic.
func (e *PanicError) StackTrace() string {
	return e.stackTrace
}

// Error from error interface.
func (e *workflowPanicError) Error() string {
	return fmt.Sprintf("%v", e.value)
}

// StackTrace returns the stack trace of the panic.
func (e *workflowPanicError) StackTrace() string {
	return e.stackTrace
}

// Error from error interface.
func (e *ContinueAsNewError) Error() string {
	return "ContinueAsNew"
}

// Error from error interface.
func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity error (activityID: %s, activityType: %s): %v", e.activityID, e.activityType, e.cause)
}

func (e *ActivityError) Unwrap() error {
	return e.cause
}

// Error from error interface.
func (e *ChildWorkflowExecutionError) Error() string {
	return fmt.Sprintf("child workflow execution error (workflowID: %s, runID: %s, workflowType: %s): %v",
		e.workflowID, e.runID, e.workflowType, e.cause)
}

func (e *ChildWorkflowExecutionError) Unwrap() error {
	return e.cause
}

// Error from error interface.
func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow execution error (workflowID: %s, runID: %s, workflowType: %s): %v",
		e.workflowID, e.runID, e.workflowType, e.cause)
}

func (e *WorkflowExecutionError) Unwrap() error {
	return e.cause
}

// IsCanceledError returns whether the error is a CanceledError.
func IsCanceledError(err error) bool {
	var canceledErr *CanceledError
	return errors.As(err, &canceledErr)
}

// NewContinueAsNewError creates a ContinueAsNewError instance. The task queue
// defaults to the one the current run is using.
func NewContinueAsNewError(ctx Context, workflowType string, args ...interface{}) *ContinueAsNewError {
	ws := ctx.state()
	input, err := encodeArgs(ws.dataConverter, args)
	if err != nil {
		panic(err)
	}
	return &ContinueAsNewError{
		WorkflowType: workflowType,
		Input:        input,
		TaskQueue:    ws.info.TaskQueue,
		CronSchedule: ws.info.CronSchedule,
	}
}

func convertErrDetailsToPayloads(details Values, dc DataConverter) *Payloads {
	switch d := details.(type) {
	case ErrorDetailsValues:
		data, err := encodeArgs(dc, d)
		if err != nil {
			panic(err)
		}
		return data
	case *EncodedValues:
		return d.values
	default:
		panic(fmt.Sprintf("unknown error details type %T", details))
	}
}

// IsRetryable returns if the error is retryable or not.
func IsRetryable(err error, nonRetryableTypes []string) bool {
	if err == nil {
		return false
	}

	var terminatedErr *TerminatedError
	var canceledErr *CanceledError
	var workflowPanicErr *workflowPanicError
	var determinismErr *DeterminismViolationError
	if errors.As(err, &terminatedErr) || errors.As(err, &canceledErr) ||
		errors.As(err, &workflowPanicErr) || errors.As(err, &determinismErr) {
		return false
	}

	var applicationErr *ApplicationError
	var applicationErrType string
	if errors.As(err, &applicationErr) {
		if applicationErr.nonRetryable {
			return false
		}
		applicationErrType = applicationErr.errType
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		if timeoutErr.timeoutType != TimeoutTypeStartToClose &&
			timeoutErr.timeoutType != TimeoutTypeHeartbeat {
			return false
		}
	}

	for {
		causeErr := errors.Unwrap(err)
		if causeErr == nil {
			break
		}
		err = causeErr
	}
	errType := getErrorType(err)
	for _, nonRetryableType := range nonRetryableTypes {
		if nonRetryableType == errType || nonRetryableType == applicationErrType {
			return false
		}
	}

	return true
}

func getErrorType(err error) string {
	var t reflect.Type
	for t = reflect.TypeOf(err); t.Kind() == reflect.Ptr; t = t.Elem() {
	}

	return t.Name()
}

// convertErrorToFailure converts an error to its wire representation.
func convertErrorToFailure(err error, dc DataConverter) *Failure {
	if err == nil {
		return nil
	}

	if fh, ok := err.(failureHolder); ok {
		if fh.failure() != nil {
			return fh.failure()
		}
	}

	failure := &Failure{
		Source:  failureSourceName,
		Message: err.Error(),
	}

	switch err := err.(type) {
	case *ApplicationError:
		failure.ApplicationFailureInfo = &ApplicationFailureInfo{
			Type:         err.errType,
			NonRetryable: err.nonRetryable,
			Details:      convertErrDetailsToPayloads(err.details, dc),
		}
		failure.StackTrace = err.stackTrace
	case *CanceledError:
		failure.CanceledFailureInfo = &CanceledFailureInfo{
			Details: convertErrDetailsToPayloads(err.details, dc),
		}
	case *PanicError:
		failure.ApplicationFailureInfo = &ApplicationFailureInfo{
			Type: getErrorType(err),
		}
		failure.StackTrace = err.StackTrace()
	case *workflowPanicError:
		failure.ApplicationFailureInfo = &ApplicationFailureInfo{
			Type:         getErrorType(&PanicError{}),
			NonRetryable: true,
		}
		failure.StackTrace = err.StackTrace()
	case *DeterminismViolationError:
		failure.ApplicationFailureInfo = &ApplicationFailureInfo{
			Type:         getErrorType(err),
			NonRetryable: true,
		}
	case *TimeoutError:
		failure.TimeoutFailureInfo = &TimeoutFailureInfo{
			TimeoutType:          err.timeoutType,
			LastHeartbeatDetails: convertErrDetailsToPayloads(err.lastHeartbeatDetails, dc),
		}
	case *TerminatedError:
		failure.TerminatedFailureInfo = &TerminatedFailureInfo{}
	case *ActivityError:
		failure.ActivityFailureInfo = &ActivityFailureInfo{
			ActivityID:   err.activityID,
			ActivityType: err.activityType,
			Identity:     err.identity,
		}
	case *ChildWorkflowExecutionError:
		failure.ChildWorkflowExecutionFailureInfo = &ChildWorkflowExecutionFailureInfo{
			Namespace:    err.namespace,
			WorkflowID:   err.workflowID,
			RunID:        err.runID,
			WorkflowType: err.workflowType,
		}
	default: // All unknown errors are considered retryable application failures.
		failure.ApplicationFailureInfo = &ApplicationFailureInfo{
			Type:         getErrorType(err),
			NonRetryable: false,
		}
	}

	failure.Cause = convertErrorToFailure(errors.Unwrap(err), dc)

	return failure
}

// convertFailureToError converts a wire failure back to an error.
func convertFailureToError(failure *Failure, dc DataConverter) error {
	if failure == nil {
		return nil
	}

	var err error

	if failure.ApplicationFailureInfo != nil {
		applicationFailureInfo := failure.ApplicationFailureInfo
		details := newEncodedValues(applicationFailureInfo.Details, dc).(*EncodedValues)
		switch applicationFailureInfo.Type {
		case getErrorType(&ApplicationError{}):
			err = NewApplicationError(failure.Message, applicationFailureInfo.NonRetryable, convertFailureToError(failure.Cause, dc), details)
		case getErrorType(&PanicError{}):
			err = newPanicError(failure.Message, failure.StackTrace)
		case getErrorType(&DeterminismViolationError{}):
			err = newDeterminismViolationError(failure.Message)
		default:
			applicationErr := NewApplicationError(failure.Message, applicationFailureInfo.NonRetryable, convertFailureToError(failure.Cause, dc), details)
			applicationErr.errType = applicationFailureInfo.Type
			err = applicationErr
		}
	} else if failure.CanceledFailureInfo != nil {
		details := newEncodedValues(failure.CanceledFailureInfo.Details, dc)
		err = NewCanceledError(details)
	} else if failure.TimeoutFailureInfo != nil {
		timeoutFailureInfo := failure.TimeoutFailureInfo
		lastHeartbeatDetails := newEncodedValues(timeoutFailureInfo.LastHeartbeatDetails, dc)
		err = NewTimeoutError(
			timeoutFailureInfo.TimeoutType,
			convertFailureToError(failure.Cause, dc),
			lastHeartbeatDetails)
	} else if failure.TerminatedFailureInfo != nil {
		err = newTerminatedError()
	} else if failure.ActivityFailureInfo != nil {
		activityFailureInfo := failure.ActivityFailureInfo
		err = NewActivityError(
			activityFailureInfo.ActivityID,
			activityFailureInfo.ActivityType,
			activityFailureInfo.Identity,
			convertFailureToError(failure.Cause, dc),
		)
	} else if failure.ChildWorkflowExecutionFailureInfo != nil {
		childWorkflowExecutionFailureInfo := failure.ChildWorkflowExecutionFailureInfo
		err = NewChildWorkflowExecutionError(
			childWorkflowExecutionFailureInfo.Namespace,
			childWorkflowExecutionFailureInfo.WorkflowID,
			childWorkflowExecutionFailureInfo.RunID,
			childWorkflowExecutionFailureInfo.WorkflowType,
			convertFailureToError(failure.Cause, dc),
		)
	}

	if err == nil {
		// All unknown types are considered to be retryable ApplicationError.
		err = NewApplicationError(failure.Message, false, convertFailureToError(failure.Cause, dc))
	}

	if fh, ok := err.(failureHolder); ok {
		fh.setFailure(failure)
	}

	return err
}
