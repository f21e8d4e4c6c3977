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
	"encoding/json"
	"fmt"
)

type (
	// ApplyMode selects how an injected dependency call crosses the sandbox
	// boundary.
	ApplyMode int32

	// TransferMode selects how argument and result values cross the boundary
	// for synchronous apply modes.
	TransferMode int32

	// DependencyRef is a host-side function registered through Inject.
	DependencyRef func(args []interface{}) (interface{}, error)

	// DependencyFunc is the workflow-side stub of an injected dependency.
	// Asynchronous modes return a Future resolved by the host through
	// ResolveExternalDependencies; synchronous modes return a ready Future.
	DependencyFunc func(ctx Context, args ...interface{}) Future

	// ExternalCall is a queued host-side invocation. A nil Seq marks a
	// fire-and-forget call whose result is discarded.
	ExternalCall struct {
		IfaceName string
		FnName    string
		Args      []interface{}
		Seq       *uint32
	}

	// ExternalCallResult correlates a host-side result with the awaiting
	// workflow promise.
	ExternalCallResult struct {
		Seq    uint32
		Result interface{}
		Error  error
	}
)

const (
	// ApplyModeAsync queues the call for the host and suspends the caller
	// until the correlated result arrives.
	ApplyModeAsync ApplyMode = iota
	// ApplyModeAsyncIgnored queues the call for the host and discards the result.
	ApplyModeAsyncIgnored
	// ApplyModeSync invokes the host reference in-process and returns its result.
	ApplyModeSync
	// ApplyModeSyncPromise invokes the host reference in-process and wraps the
	// result in a ready future.
	ApplyModeSyncPromise
	// ApplyModeSyncIgnored invokes the host reference in-process and discards
	// the result.
	ApplyModeSyncIgnored
)

const (
	// TransferValue passes values across the boundary by reference.
	TransferValue TransferMode = iota
	// TransferPayloads deep-copies values through their JSON encoding so the
	// two sides cannot share mutable state.
	TransferPayloads
)

func (m ApplyMode) String() string {
	switch m {
	case ApplyModeAsync:
		return "ASYNC"
	case ApplyModeAsyncIgnored:
		return "ASYNC_IGNORED"
	case ApplyModeSync:
		return "SYNC"
	case ApplyModeSyncPromise:
		return "SYNC_PROMISE"
	case ApplyModeSyncIgnored:
		return "SYNC_IGNORED"
	default:
		return fmt.Sprintf("ApplyMode(%d)", int32(m))
	}
}

// Inject registers a host-side function as a workflow-visible dependency under
// ifaceName.fnName. Asynchronous modes defer the side effect to the host so
// the workflow can suspend deterministically; synchronous modes are escape
// hatches for in-process observability that must not perturb determinism at
// the host boundary.
func (r *WorkflowRuntime) Inject(ifaceName, fnName string, ref DependencyRef, mode ApplyMode, transfer TransferMode) error {
	if ifaceName == "" || fnName == "" {
		return newTypeError("dependency interface and function names are required")
	}
	switch mode {
	case ApplyModeAsync, ApplyModeAsyncIgnored:
	case ApplyModeSync, ApplyModeSyncPromise, ApplyModeSyncIgnored:
		if ref == nil {
			return newTypeError("dependency %s.%s: %v mode requires a host reference", ifaceName, fnName, mode)
		}
	default:
		return newTypeError("dependency %s.%s: unknown apply mode %d", ifaceName, fnName, int32(mode))
	}

	ws := r.state
	iface := ws.dependencies[ifaceName]
	if iface == nil {
		iface = make(map[string]DependencyFunc)
		ws.dependencies[ifaceName] = iface
	}
	iface[fnName] = ws.newDependencyStub(ifaceName, fnName, ref, mode, transfer)
	return nil
}

func (ws *workflowState) newDependencyStub(ifaceName, fnName string, ref DependencyRef, mode ApplyMode, transfer TransferMode) DependencyFunc {
	switch mode {
	case ApplyModeAsync:
		return func(ctx Context, args ...interface{}) Future {
			seq := ws.nextSeq(resourceKindDependency)
			future, settable := NewFuture(ctx)
			ws.registerCompletion(resourceKindDependency, seq, &completion{
				resolve: func(result interface{}) { settable.Set(result, nil) },
				reject:  func(err error) { settable.SetError(err) },
			})
			ws.pendingExternalCalls = append(ws.pendingExternalCalls, &ExternalCall{
				IfaceName: ifaceName,
				FnName:    fnName,
				Args:      args,
				Seq:       &seq,
			})
			return future
		}
	case ApplyModeAsyncIgnored:
		return func(ctx Context, args ...interface{}) Future {
			ws.pendingExternalCalls = append(ws.pendingExternalCalls, &ExternalCall{
				IfaceName: ifaceName,
				FnName:    fnName,
				Args:      args,
			})
			return newReadyFuture(ctx, nil, nil)
		}
	case ApplyModeSyncIgnored:
		return func(ctx Context, args ...interface{}) Future {
			args, err := transferArgs(args, transfer)
			if err == nil {
				_, _ = ref(args)
			}
			return newReadyFuture(ctx, nil, nil)
		}
	default: // ApplyModeSync, ApplyModeSyncPromise
		return func(ctx Context, args ...interface{}) Future {
			args, err := transferArgs(args, transfer)
			if err != nil {
				return newReadyFuture(ctx, nil, err)
			}
			result, err := ref(args)
			if err == nil && transfer == TransferPayloads {
				result, err = transferValue(result)
			}
			return newReadyFuture(ctx, result, err)
		}
	}
}

// GetDependency looks up a dependency stub registered through Inject.
func GetDependency(ctx Context, ifaceName, fnName string) (DependencyFunc, error) {
	fn, ok := ctx.state().dependencies[ifaceName][fnName]
	if !ok {
		return nil, newIllegalStateError("no dependency registered under %s.%s", ifaceName, fnName)
	}
	return fn, nil
}

// GetAndResetPendingExternalCalls returns the queued host-side calls and
// clears the queue.
func (r *WorkflowRuntime) GetAndResetPendingExternalCalls() []*ExternalCall {
	return r.state.getAndResetPendingExternalCalls()
}

func (ws *workflowState) getAndResetPendingExternalCalls() []*ExternalCall {
	calls := ws.pendingExternalCalls
	ws.pendingExternalCalls = nil
	return calls
}

// ResolveExternalDependencies feeds host-side results back to the awaiting
// promises and runs the scheduler until quiescent so continuations execute
// before the host asks for conclusion. An unknown sequence is an illegal
// state: it indicates a protocol bug or a duplicate resolution.
func (r *WorkflowRuntime) ResolveExternalDependencies(results []*ExternalCallResult) error {
	ws := r.state
	for _, result := range results {
		c, err := ws.consumeCompletion(resourceKindDependency, result.Seq)
		if err != nil {
			return err
		}
		if result.Error != nil {
			c.reject(result.Error)
		} else {
			c.resolve(result.Result)
		}
	}
	if err := ws.runScheduler(); err != nil {
		ws.handleWorkflowFailure(err)
	}
	return nil
}

// transferArgs applies the transfer semantics to every argument.
func transferArgs(args []interface{}, transfer TransferMode) ([]interface{}, error) {
	if transfer != TransferPayloads {
		return args, nil
	}
	isolated := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := transferValue(arg)
		if err != nil {
			return nil, err
		}
		isolated[i] = v
	}
	return isolated, nil
}

// transferValue deep-copies a value through its encoded form so neither side
// can observe the other's mutations.
func transferValue(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnableToEncodeJSON, err)
	}
	var copied interface{}
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnableToDecodeJSON, err)
	}
	return copied, nil
}
