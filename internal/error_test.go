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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplicationErrorFailureRoundTrip(t *testing.T) {
	dc := getDefaultDataConverter()
	cause := errors.New("underlying problem")
	appErr := NewApplicationError("something went wrong", true, cause, "detail-1", 42)

	failure := convertErrorToFailure(appErr, dc)
	require.Equal(t, "something went wrong", failure.Message)
	require.Equal(t, failureSourceName, failure.Source)
	require.NotNil(t, failure.ApplicationFailureInfo)
	require.Equal(t, "ApplicationError", failure.ApplicationFailureInfo.Type)
	require.True(t, failure.ApplicationFailureInfo.NonRetryable)
	require.NotNil(t, failure.Cause)
	require.Equal(t, "underlying problem", failure.Cause.Message)

	err := convertFailureToError(failure, dc)
	var converted *ApplicationError
	require.True(t, errors.As(err, &converted))
	require.Equal(t, "something went wrong", converted.Error())
	require.True(t, converted.NonRetryable())
	require.True(t, converted.HasDetails())
	var detail string
	var number int
	require.NoError(t, converted.Details(&detail, &number))
	require.Equal(t, "detail-1", detail)
	require.Equal(t, 42, number)
}

func TestCanceledErrorFailureRoundTrip(t *testing.T) {
	dc := getDefaultDataConverter()
	canceledErr := NewCanceledError("cleanup-done")

	failure := convertErrorToFailure(canceledErr, dc)
	require.NotNil(t, failure.CanceledFailureInfo)

	err := convertFailureToError(failure, dc)
	require.True(t, IsCanceledError(err))
	var converted *CanceledError
	require.True(t, errors.As(err, &converted))
	var detail string
	require.NoError(t, converted.Details(&detail))
	require.Equal(t, "cleanup-done", detail)
}

func TestDeterminismViolationFailureIsNonRetryable(t *testing.T) {
	dc := getDefaultDataConverter()
	violation := newDeterminismViolationError("WeakMap cannot be used in workflow code")

	failure := convertErrorToFailure(violation, dc)
	require.NotNil(t, failure.ApplicationFailureInfo)
	require.Equal(t, "DeterminismViolationError", failure.ApplicationFailureInfo.Type)
	require.True(t, failure.ApplicationFailureInfo.NonRetryable)

	err := convertFailureToError(failure, dc)
	require.IsType(t, (*DeterminismViolationError)(nil), err)
}

func TestWorkflowPanicFailureCarriesStack(t *testing.T) {
	dc := getDefaultDataConverter()
	panicErr := newWorkflowPanicError("boom", "coroutine root [panic]:\nmain.crash()")

	failure := convertErrorToFailure(panicErr, dc)
	require.NotNil(t, failure.ApplicationFailureInfo)
	require.Equal(t, "PanicError", failure.ApplicationFailureInfo.Type)
	require.True(t, failure.ApplicationFailureInfo.NonRetryable)
	require.Contains(t, failure.StackTrace, "main.crash")

	err := convertFailureToError(failure, dc)
	var converted *PanicError
	require.True(t, errors.As(err, &converted))
	require.Contains(t, converted.StackTrace(), "main.crash")
}

func TestTimeoutErrorFailureRoundTrip(t *testing.T) {
	dc := getDefaultDataConverter()
	timeoutErr := NewTimeoutError(TimeoutTypeHeartbeat, nil, "last-heartbeat")

	failure := convertErrorToFailure(timeoutErr, dc)
	require.NotNil(t, failure.TimeoutFailureInfo)
	require.Equal(t, TimeoutTypeHeartbeat, failure.TimeoutFailureInfo.TimeoutType)

	err := convertFailureToError(failure, dc)
	var converted *TimeoutError
	require.True(t, errors.As(err, &converted))
	require.Equal(t, TimeoutTypeHeartbeat, converted.TimeoutType())
}

func TestActivityErrorUnwrapsToCause(t *testing.T) {
	dc := getDefaultDataConverter()
	cause := NewApplicationError("activity blew up", false, nil)
	activityErr := NewActivityError("5", "ProcessOrder", "worker-1", cause)

	failure := convertErrorToFailure(activityErr, dc)
	require.NotNil(t, failure.ActivityFailureInfo)
	require.Equal(t, "ProcessOrder", failure.ActivityFailureInfo.ActivityType)

	err := convertFailureToError(failure, dc)
	var converted *ActivityError
	require.True(t, errors.As(err, &converted))
	var convertedCause *ApplicationError
	require.True(t, errors.As(errors.Unwrap(converted), &convertedCause))
	require.Equal(t, "activity blew up", convertedCause.Error())
}

func TestUnknownErrorBecomesRetryableApplicationFailure(t *testing.T) {
	dc := getDefaultDataConverter()
	failure := convertErrorToFailure(errors.New("plain error"), dc)
	require.NotNil(t, failure.ApplicationFailureInfo)
	require.False(t, failure.ApplicationFailureInfo.NonRetryable)
	require.Equal(t, "errorString", failure.ApplicationFailureInfo.Type)
}

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil, nil))
	require.False(t, IsRetryable(NewCanceledError(), nil))
	require.False(t, IsRetryable(newTerminatedError(), nil))
	require.False(t, IsRetryable(newDeterminismViolationError("divergence"), nil))
	require.False(t, IsRetryable(newWorkflowPanicError("boom", ""), nil))
	require.False(t, IsRetryable(NewApplicationError("fatal", true, nil), nil))
	require.True(t, IsRetryable(NewApplicationError("transient", false, nil), nil))
	require.True(t, IsRetryable(NewTimeoutError(TimeoutTypeStartToClose, nil), nil))
	require.False(t, IsRetryable(NewTimeoutError(TimeoutTypeScheduleToStart, nil), nil))
	require.True(t, IsRetryable(errors.New("plain"), nil))
	require.False(t, IsRetryable(errors.New("plain"), []string{"errorString"}))
}

func TestOriginalFailureIsPreservedOnReconversion(t *testing.T) {
	dc := getDefaultDataConverter()
	original := convertErrorToFailure(NewApplicationError("first", false, nil), dc)
	err := convertFailureToError(original, dc)
	require.Same(t, original, convertErrorToFailure(err, dc))
}
