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

// Package sandbox is the host-facing surface of the deterministic workflow
// execution core. A host worker creates one Runtime per cached workflow run,
// installs a module loader, initializes it, and then drives it with encoded
// activations:
//
//	runtime := sandbox.New(sandbox.Options{})
//	runtime.SetRequireFunc(loader)
//	err := runtime.InitRuntime(info, nil, seed, now, nil)
//	result, err := runtime.Activate(encodedActivation, 0)
//	// service result.ExternalCalls, then:
//	err = runtime.ResolveExternalDependencies(results)
//	conclusion, err := runtime.ConcludeActivation()
//
// A pending conclusion means more external calls were produced by workflow
// continuations; service them and conclude again.
package sandbox

import (
	"github.com/opentracing/opentracing-go"

	"github.com/joebowbeer/sdk-core/internal"
)

type (
	// Runtime drives exactly one workflow run through a stream of activations.
	Runtime = internal.WorkflowRuntime

	// Options configures a Runtime.
	Options = internal.RuntimeOptions

	// WorkflowInfo is the identity record of a workflow run.
	WorkflowInfo = internal.WorkflowInfo

	// WorkflowFunc is a user workflow entry point.
	WorkflowFunc = internal.WorkflowFunc

	// Module is the namespace a loaded module exports.
	Module = internal.Module

	// RequireFunc resolves a module path to its namespace.
	RequireFunc = internal.RequireFunc

	// IsolateExtension is the host-provided coroutine instrumentation capability.
	IsolateExtension = internal.IsolateExtension

	// ApplyMode selects how an injected dependency call crosses the boundary.
	ApplyMode = internal.ApplyMode

	// TransferMode selects how values cross the boundary for sync apply modes.
	TransferMode = internal.TransferMode

	// DependencyRef is a host-side function registered through Inject.
	DependencyRef = internal.DependencyRef

	// ExternalCall is a queued host-side invocation.
	ExternalCall = internal.ExternalCall

	// ExternalCallResult correlates a host-side result with its awaiting promise.
	ExternalCallResult = internal.ExternalCallResult

	// ActivationResult is returned from Activate.
	ActivationResult = internal.ActivationResult

	// ActivationConclusion is returned from ConcludeActivation.
	ActivationConclusion = internal.ActivationConclusion

	// ConclusionType discriminates ActivationConclusion values.
	ConclusionType = internal.ConclusionType

	// WorkflowInterceptors is the set of interceptors one module contributes.
	WorkflowInterceptors = internal.WorkflowInterceptors

	// InterceptorsFactory is the callable an interceptor module exports.
	InterceptorsFactory = internal.InterceptorsFactory
)

const (
	// ApplyModeAsync queues the call for the host and suspends the caller.
	ApplyModeAsync = internal.ApplyModeAsync
	// ApplyModeAsyncIgnored queues the call and discards the result.
	ApplyModeAsyncIgnored = internal.ApplyModeAsyncIgnored
	// ApplyModeSync invokes the host reference in-process.
	ApplyModeSync = internal.ApplyModeSync
	// ApplyModeSyncPromise invokes the host reference in-process, wrapping the
	// result in a ready future.
	ApplyModeSyncPromise = internal.ApplyModeSyncPromise
	// ApplyModeSyncIgnored invokes the host reference in-process and discards
	// the result.
	ApplyModeSyncIgnored = internal.ApplyModeSyncIgnored

	// TransferValue passes values across the boundary by reference.
	TransferValue = internal.TransferValue
	// TransferPayloads deep-copies values through their JSON encoding.
	TransferPayloads = internal.TransferPayloads

	// ConclusionPending reports outstanding external calls.
	ConclusionPending = internal.ConclusionPending
	// ConclusionComplete carries the encoded activation completion.
	ConclusionComplete = internal.ConclusionComplete
)

// New creates a runtime for a single workflow run.
func New(options Options) *Runtime {
	return internal.NewWorkflowRuntime(options)
}

// NewTracingInterceptorsFactory returns an interceptors factory that opens a
// span around every activation and conclusion.
func NewTracingInterceptorsFactory(tracer opentracing.Tracer) InterceptorsFactory {
	return internal.NewTracingInterceptorsFactory(tracer)
}
