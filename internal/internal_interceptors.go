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

type (
	// ActivateInput is the input to the activate interceptor chain.
	ActivateInput struct {
		Activation *WorkflowActivation
		BatchIndex uint32
	}

	// ActivationResult is returned from Activate. The host services the
	// external calls and re-enters with their results.
	ActivationResult struct {
		ExternalCalls        []*ExternalCall
		NumBlockedConditions int
	}

	// ActivateFunc is the next step of the activate chain.
	ActivateFunc func(in *ActivateInput) (*ActivationResult, error)

	// ActivateInterceptor wraps activation processing. Implementations must
	// delegate to next for the workflow to make progress.
	ActivateInterceptor func(in *ActivateInput, next ActivateFunc) (*ActivationResult, error)

	// ConcludeActivationInput is the input to the concludeActivation
	// interceptor chain. Interceptors may observe or rewrite the command list
	// before it is flushed.
	ConcludeActivationInput struct {
		Commands []*WorkflowCommand
	}

	// ConcludeActivationFunc is the next step of the concludeActivation chain.
	ConcludeActivationFunc func(in *ConcludeActivationInput) (*ConcludeActivationInput, error)

	// ConcludeActivationInterceptor wraps activation conclusion.
	ConcludeActivationInterceptor func(in *ConcludeActivationInput, next ConcludeActivationFunc) (*ConcludeActivationInput, error)

	// WorkflowInternalsInterceptors hook the two core operations.
	WorkflowInternalsInterceptors struct {
		Activate           []ActivateInterceptor
		ConcludeActivation []ConcludeActivationInterceptor
	}

	// WorkflowInboundInterceptor intercepts calls delivered to workflow code.
	// The core registers inbound interceptors on behalf of higher level
	// workflow APIs and does not interpret them.
	WorkflowInboundInterceptor interface {
		mustEmbedWorkflowInboundInterceptorBase()
	}

	// WorkflowInboundInterceptorBase must be embedded by inbound interceptor
	// implementations so new methods can be added without breaking them.
	WorkflowInboundInterceptorBase struct{}

	// WorkflowOutboundInterceptor intercepts calls made by workflow code. As
	// with inbound interceptors the core only registers them.
	WorkflowOutboundInterceptor interface {
		mustEmbedWorkflowOutboundInterceptorBase()
	}

	// WorkflowOutboundInterceptorBase must be embedded by outbound interceptor
	// implementations.
	WorkflowOutboundInterceptorBase struct{}

	// WorkflowInterceptors is the set of interceptors contributed by one
	// interceptor module.
	WorkflowInterceptors struct {
		Inbound   []WorkflowInboundInterceptor
		Outbound  []WorkflowOutboundInterceptor
		Internals *WorkflowInternalsInterceptors
	}

	// InterceptorsFactory is the callable an interceptor module exports under
	// the "interceptors" name.
	InterceptorsFactory func() *WorkflowInterceptors
)

func (*WorkflowInboundInterceptorBase) mustEmbedWorkflowInboundInterceptorBase()   {}
func (*WorkflowOutboundInterceptorBase) mustEmbedWorkflowOutboundInterceptorBase() {}

// composeActivate folds the middlewares around the base handler, innermost
// last: the first registered interceptor sees the input first.
func composeActivate(interceptors []ActivateInterceptor, base ActivateFunc) ActivateFunc {
	next := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		inner := next
		next = func(in *ActivateInput) (*ActivationResult, error) {
			return interceptor(in, inner)
		}
	}
	return next
}

// composeConcludeActivation folds the middlewares around the base handler,
// innermost last.
func composeConcludeActivation(interceptors []ConcludeActivationInterceptor, base ConcludeActivationFunc) ConcludeActivationFunc {
	next := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		inner := next
		next = func(in *ConcludeActivationInput) (*ConcludeActivationInput, error) {
			return interceptor(in, inner)
		}
	}
	return next
}
