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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dependencyTestRuntime(t *testing.T, workflows Module) *WorkflowRuntime {
	rt := NewWorkflowRuntime(RuntimeOptions{})
	rt.SetRequireFunc(func(path string) (Module, error) {
		if path == mainModulePath {
			return workflows, nil
		}
		return nil, fmt.Errorf("module %q not found", path)
	})
	return rt
}

func activateStart(t *testing.T, rt *WorkflowRuntime, workflowType string) *ActivationResult {
	ts := time.Unix(0, 0)
	encoded, err := EncodeActivation(&WorkflowActivation{
		RunID:     "test-run",
		Timestamp: &ts,
		Jobs: []*WorkflowActivationJob{{StartWorkflow: &StartWorkflowJob{
			WorkflowType: workflowType,
			WorkflowID:   "test-workflow-id",
		}}},
	})
	require.NoError(t, err)
	result, err := rt.Activate(encoded, 0)
	require.NoError(t, err)
	return result
}

func concludedCommands(t *testing.T, rt *WorkflowRuntime) []*WorkflowCommand {
	conclusion, err := rt.ConcludeActivation()
	require.NoError(t, err)
	require.Equal(t, ConclusionComplete, conclusion.Type)
	completion, err := DecodeCompletion(conclusion.Encoded)
	require.NoError(t, err)
	return completion.Successful.Commands
}

func TestAsyncDependencyCorrelation(t *testing.T) {
	workflows := Module{
		"fetcher": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			get, err := GetDependency(ctx, "store", "get")
			if err != nil {
				return nil, err
			}
			var value string
			if err := get(ctx, "some-key").Get(ctx, &value); err != nil {
				return nil, err
			}
			return ctx.state().dataConverter.ToData(value)
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("store", "get", nil, ApplyModeAsync, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("fetcher"), nil, []byte{1}, time.Unix(0, 0), nil))

	result := activateStart(t, rt, "fetcher")
	require.Len(t, result.ExternalCalls, 1)
	call := result.ExternalCalls[0]
	require.Equal(t, "store", call.IfaceName)
	require.Equal(t, "get", call.FnName)
	require.Equal(t, []interface{}{"some-key"}, call.Args)
	require.NotNil(t, call.Seq)
	require.Equal(t, uint32(0), *call.Seq)

	require.NoError(t, rt.ResolveExternalDependencies([]*ExternalCallResult{
		{Seq: *call.Seq, Result: "stored-value"},
	}))

	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].CompleteWorkflowExecution)
	var returned string
	require.NoError(t, rt.state.dataConverter.FromData(commands[0].CompleteWorkflowExecution.Result, &returned))
	require.Equal(t, "stored-value", returned)
}

func TestAsyncDependencyRejection(t *testing.T) {
	workflows := Module{
		"fetcher": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			get, err := GetDependency(ctx, "store", "get")
			if err != nil {
				return nil, err
			}
			if err := get(ctx, "some-key").Get(ctx, nil); err != nil {
				return nil, err
			}
			return nil, nil
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("store", "get", nil, ApplyModeAsync, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("fetcher"), nil, []byte{1}, time.Unix(0, 0), nil))

	result := activateStart(t, rt, "fetcher")
	require.Len(t, result.ExternalCalls, 1)

	require.NoError(t, rt.ResolveExternalDependencies([]*ExternalCallResult{
		{Seq: *result.ExternalCalls[0].Seq, Error: errors.New("store unavailable")},
	}))

	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].FailWorkflowExecution)
	require.Contains(t, commands[0].FailWorkflowExecution.Failure.Message, "store unavailable")
}

func TestAsyncIgnoredDependencyHasNoSeq(t *testing.T) {
	workflows := Module{
		"emitter": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			emit, err := GetDependency(ctx, "metrics", "emit")
			if err != nil {
				return nil, err
			}
			emit(ctx, 42)
			return nil, nil
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("metrics", "emit", nil, ApplyModeAsyncIgnored, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("emitter"), nil, []byte{1}, time.Unix(0, 0), nil))

	result := activateStart(t, rt, "emitter")
	require.Len(t, result.ExternalCalls, 1)
	call := result.ExternalCalls[0]
	require.Equal(t, "metrics", call.IfaceName)
	require.Equal(t, "emit", call.FnName)
	require.Equal(t, []interface{}{42}, call.Args)
	require.Nil(t, call.Seq, "fire-and-forget calls carry no sequence")

	// The workflow completed without waiting on the call.
	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].CompleteWorkflowExecution)
}

func TestSyncDependencyDelegatesInProcess(t *testing.T) {
	var received []interface{}
	workflows := Module{
		"syncer": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			echo, err := GetDependency(ctx, "logger", "echo")
			if err != nil {
				return nil, err
			}
			var out string
			if err := echo(ctx, "ping").Get(ctx, &out); err != nil {
				return nil, err
			}
			return ctx.state().dataConverter.ToData(out)
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("logger", "echo", func(args []interface{}) (interface{}, error) {
		received = args
		return args[0].(string) + "-pong", nil
	}, ApplyModeSync, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("syncer"), nil, []byte{1}, time.Unix(0, 0), nil))

	result := activateStart(t, rt, "syncer")
	require.Empty(t, result.ExternalCalls, "sync calls never reach the host queue")
	require.Equal(t, []interface{}{"ping"}, received)

	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	var returned string
	require.NoError(t, rt.state.dataConverter.FromData(commands[0].CompleteWorkflowExecution.Result, &returned))
	require.Equal(t, "ping-pong", returned)
}

func TestSyncDependencyPayloadTransferIsolatesValues(t *testing.T) {
	var received map[string]interface{}
	workflows := Module{
		"isolator": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			record, err := GetDependency(ctx, "audit", "record")
			if err != nil {
				return nil, err
			}
			payload := map[string]interface{}{"answer": "original"}
			if err := record(ctx, payload).Get(ctx, nil); err != nil {
				return nil, err
			}
			if payload["answer"] != "original" {
				return nil, errors.New("host mutation leaked into the workflow")
			}
			return nil, nil
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("audit", "record", func(args []interface{}) (interface{}, error) {
		received = args[0].(map[string]interface{})
		received["answer"] = "mutated"
		return nil, nil
	}, ApplyModeSync, TransferPayloads))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("isolator"), nil, []byte{1}, time.Unix(0, 0), nil))

	activateStart(t, rt, "isolator")
	require.Equal(t, "mutated", received["answer"])

	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].CompleteWorkflowExecution, "workflow copy must stay untouched")
}

func TestSyncIgnoredDiscardsResultAndError(t *testing.T) {
	called := false
	workflows := Module{
		"ignorer": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			poke, err := GetDependency(ctx, "obs", "poke")
			if err != nil {
				return nil, err
			}
			if err := poke(ctx).Get(ctx, nil); err != nil {
				return nil, err
			}
			return nil, nil
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("obs", "poke", func(args []interface{}) (interface{}, error) {
		called = true
		return "ignored", errors.New("ignored too")
	}, ApplyModeSyncIgnored, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("ignorer"), nil, []byte{1}, time.Unix(0, 0), nil))

	activateStart(t, rt, "ignorer")
	require.True(t, called)

	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].CompleteWorkflowExecution)
}

func TestResolveUnknownDependencySeqIsIllegalState(t *testing.T) {
	rt := dependencyTestRuntime(t, Module{
		"plain": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			return nil, nil
		}),
	})
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("plain"), nil, []byte{1}, time.Unix(0, 0), nil))

	err := rt.ResolveExternalDependencies([]*ExternalCallResult{{Seq: 99, Result: "x"}})
	require.Error(t, err)
	require.IsType(t, (*IllegalStateError)(nil), err)
}

func TestInjectValidation(t *testing.T) {
	rt := dependencyTestRuntime(t, Module{})

	err := rt.Inject("", "fn", nil, ApplyModeAsync, TransferValue)
	require.IsType(t, (*TypeError)(nil), err)

	err = rt.Inject("iface", "fn", nil, ApplyModeSync, TransferValue)
	require.IsType(t, (*TypeError)(nil), err, "sync modes require a host reference")

	err = rt.Inject("iface", "fn", nil, ApplyMode(99), TransferValue)
	require.IsType(t, (*TypeError)(nil), err)
}

func TestGetDependencyUnknownIsIllegalState(t *testing.T) {
	ws := createTestState()
	d := newDispatcher(ws, func(ctx Context) {
		_, err := GetDependency(ctx, "nope", "missing")
		require.Error(t, err)
		require.IsType(t, (*IllegalStateError)(nil), err)
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
}

func TestPendingExternalCallsDrainOnConclude(t *testing.T) {
	workflows := Module{
		"late-caller": WorkflowFunc(func(ctx Context, input *Payloads) (*Payloads, error) {
			first, err := GetDependency(ctx, "store", "get")
			if err != nil {
				return nil, err
			}
			var v string
			if err := first(ctx, "a").Get(ctx, &v); err != nil {
				return nil, err
			}
			// A second call issued after the first resolves: it only shows up
			// at conclusion, which must report pending.
			if err := first(ctx, "b").Get(ctx, nil); err != nil {
				return nil, err
			}
			return nil, nil
		}),
	}
	rt := dependencyTestRuntime(t, workflows)
	require.NoError(t, rt.Inject("store", "get", nil, ApplyModeAsync, TransferValue))
	require.NoError(t, rt.InitRuntime(testWorkflowInfo("late-caller"), nil, []byte{1}, time.Unix(0, 0), nil))

	result := activateStart(t, rt, "late-caller")
	require.Len(t, result.ExternalCalls, 1)
	require.NoError(t, rt.ResolveExternalDependencies([]*ExternalCallResult{
		{Seq: *result.ExternalCalls[0].Seq, Result: "va"},
	}))

	conclusion, err := rt.ConcludeActivation()
	require.NoError(t, err)
	require.Equal(t, ConclusionPending, conclusion.Type)
	require.Len(t, conclusion.PendingExternalCalls, 1)
	require.Equal(t, uint32(1), *conclusion.PendingExternalCalls[0].Seq)

	require.NoError(t, rt.ResolveExternalDependencies([]*ExternalCallResult{
		{Seq: *conclusion.PendingExternalCalls[0].Seq, Result: nil},
	}))
	commands := concludedCommands(t, rt)
	require.Len(t, commands, 1)
	require.NotNil(t, commands[0].CompleteWorkflowExecution)
}
