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
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// NewTracingInterceptorsFactory returns an interceptors factory that opens a
// span around every activation and every conclusion. Spans are created and
// finished on the host side of the boundary, so tracing never perturbs
// workflow determinism. A nil tracer falls back to the global tracer.
func NewTracingInterceptorsFactory(tracer opentracing.Tracer) InterceptorsFactory {
	return func() *WorkflowInterceptors {
		return &WorkflowInterceptors{
			Internals: &WorkflowInternalsInterceptors{
				Activate:           []ActivateInterceptor{newTracingActivateInterceptor(tracer)},
				ConcludeActivation: []ConcludeActivationInterceptor{newTracingConcludeInterceptor(tracer)},
			},
		}
	}
}

func resolveTracer(tracer opentracing.Tracer) opentracing.Tracer {
	if tracer == nil {
		return opentracing.GlobalTracer()
	}
	return tracer
}

func newTracingActivateInterceptor(tracer opentracing.Tracer) ActivateInterceptor {
	return func(in *ActivateInput, next ActivateFunc) (*ActivationResult, error) {
		span := resolveTracer(tracer).StartSpan("workflow.activate", opentracing.Tags{
			"runId":       in.Activation.RunID,
			"batchIndex":  in.BatchIndex,
			"numJobs":     len(in.Activation.Jobs),
			"isReplaying": in.Activation.IsReplaying,
		})
		defer span.Finish()

		result, err := next(in)
		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("event", "error", "message", err.Error())
			return result, err
		}
		span.SetTag("numExternalCalls", len(result.ExternalCalls))
		span.SetTag("numBlockedConditions", result.NumBlockedConditions)
		return result, nil
	}
}

func newTracingConcludeInterceptor(tracer opentracing.Tracer) ConcludeActivationInterceptor {
	return func(in *ConcludeActivationInput, next ConcludeActivationFunc) (*ConcludeActivationInput, error) {
		span := resolveTracer(tracer).StartSpan("workflow.concludeActivation", opentracing.Tags{
			"numCommands": len(in.Commands),
		})
		defer span.Finish()

		out, err := next(in)
		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("event", "error", "message", err.Error())
		}
		return out, err
	}
}
