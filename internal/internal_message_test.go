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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobVariantExactlyOne(t *testing.T) {
	name, payload, err := (&WorkflowActivationJob{FireTimer: &FireTimerJob{Seq: 3}}).variant()
	require.NoError(t, err)
	require.Equal(t, "fireTimer", name)
	require.Equal(t, uint32(3), payload.(*FireTimerJob).Seq)

	_, _, err = (&WorkflowActivationJob{}).variant()
	require.Error(t, err)
	require.IsType(t, (*TypeError)(nil), err)

	_, _, err = (&WorkflowActivationJob{
		FireTimer:      &FireTimerJob{Seq: 1},
		SignalWorkflow: &SignalWorkflowJob{SignalName: "s"},
	}).variant()
	require.Error(t, err)
	require.IsType(t, (*TypeError)(nil), err)
}

func TestActivationRoundTrip(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	activation := &WorkflowActivation{
		RunID:       "run-1",
		Timestamp:   &ts,
		IsReplaying: true,
		Jobs: []*WorkflowActivationJob{
			{StartWorkflow: &StartWorkflowJob{WorkflowType: "sleeper", WorkflowID: "wf-1"}},
			{FireTimer: &FireTimerJob{Seq: 0}},
		},
	}

	encoded, err := EncodeActivation(activation)
	require.NoError(t, err)

	decoded, err := DecodeActivation(encoded)
	require.NoError(t, err)
	require.Equal(t, "run-1", decoded.RunID)
	require.True(t, decoded.IsReplaying)
	require.NotNil(t, decoded.Timestamp)
	require.True(t, ts.Equal(*decoded.Timestamp))
	require.Len(t, decoded.Jobs, 2)
	require.Equal(t, "sleeper", decoded.Jobs[0].StartWorkflow.WorkflowType)
	require.Equal(t, uint32(0), decoded.Jobs[1].FireTimer.Seq)
}

func TestQueryOnlyActivationCarriesNoTimestamp(t *testing.T) {
	activation := &WorkflowActivation{
		RunID: "run-1",
		Jobs: []*WorkflowActivationJob{
			{QueryWorkflow: &QueryWorkflowJob{QueryID: "q1", QueryType: "state"}},
		},
	}
	encoded, err := EncodeActivation(activation)
	require.NoError(t, err)
	decoded, err := DecodeActivation(encoded)
	require.NoError(t, err)
	require.Nil(t, decoded.Timestamp)
}

func TestCompletionRoundTrip(t *testing.T) {
	completion := &WorkflowActivationCompletion{
		RunID: "run-1",
		Successful: &SuccessfulCompletion{
			Commands: []*WorkflowCommand{
				{StartTimer: &StartTimerCommand{Seq: 0, Duration: time.Second}},
				{CompleteWorkflowExecution: &CompleteWorkflowExecutionCommand{}},
			},
		},
	}
	encoded, err := EncodeCompletion(completion)
	require.NoError(t, err)
	decoded, err := DecodeCompletion(encoded)
	require.NoError(t, err)
	require.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Successful.Commands, 2)
	require.Equal(t, time.Second, decoded.Successful.Commands[0].StartTimer.Duration)
	require.NotNil(t, decoded.Successful.Commands[1].CompleteWorkflowExecution)
}

func TestDecodeMalformedActivation(t *testing.T) {
	_, err := DecodeActivation([]byte{0xff})
	require.Error(t, err)
	require.IsType(t, (*TypeError)(nil), err)

	// Truncated frame: declared length exceeds the body.
	_, err = DecodeActivation([]byte{0x10, '{', '}'})
	require.Error(t, err)
	require.IsType(t, (*TypeError)(nil), err)
}
