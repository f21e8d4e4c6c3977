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
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	tagWorkflowType = "WorkflowType"
	tagWorkflowID   = "WorkflowID"
	tagRunID        = "RunID"
)

// ReplayAwareLogger writes through the runtime's zap logger except while the
// run replays recorded history, when repeating log lines would duplicate the
// original execution's output.
type ReplayAwareLogger struct {
	base *zap.Logger
	ws   *workflowState
}

func newReplayAwareLogger(base *zap.Logger, ws *workflowState) *ReplayAwareLogger {
	return &ReplayAwareLogger{base: base, ws: ws}
}

func (l *ReplayAwareLogger) suppressed() bool {
	return l.ws.info != nil && l.ws.info.IsReplaying
}

// Debug logs at debug level unless replaying.
func (l *ReplayAwareLogger) Debug(msg string, fields ...zap.Field) {
	if !l.suppressed() {
		l.base.Debug(msg, fields...)
	}
}

// Info logs at info level unless replaying.
func (l *ReplayAwareLogger) Info(msg string, fields ...zap.Field) {
	if !l.suppressed() {
		l.base.Info(msg, fields...)
	}
}

// Warn logs at warn level unless replaying.
func (l *ReplayAwareLogger) Warn(msg string, fields ...zap.Field) {
	if !l.suppressed() {
		l.base.Warn(msg, fields...)
	}
}

// Error logs at error level unless replaying.
func (l *ReplayAwareLogger) Error(msg string, fields ...zap.Field) {
	if !l.suppressed() {
		l.base.Error(msg, fields...)
	}
}

// GetLogger returns a replay-aware logger tagged with the run's identity.
func GetLogger(ctx Context) *ReplayAwareLogger {
	ws := ctx.state()
	base := ws.logger.With(
		zap.String(tagWorkflowType, ws.info.WorkflowType),
		zap.String(tagWorkflowID, ws.info.WorkflowID),
		zap.String(tagRunID, ws.info.RunID),
	)
	return newReplayAwareLogger(base, ws)
}

// GetMetricsScope returns the runtime's metrics scope.
func GetMetricsScope(ctx Context) tally.Scope {
	return ctx.state().metricsScope
}
