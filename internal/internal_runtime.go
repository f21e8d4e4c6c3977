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
	"container/list"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pborman/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// WorkflowInfo is the identity record of a single workflow run.
	// IsReplaying is updated by every first-batch activation. InitRuntime
	// fills an empty RunID with a fresh UUID, and the StartWorkflow job fills
	// WorkflowID, CronSchedule and Attempt when it carries them, before
	// workflow code runs. The other fields stay fixed for the run.
	WorkflowInfo struct {
		WorkflowType string
		RunID        string
		WorkflowID   string
		TaskQueue    string
		Namespace    string
		Attempt      int32
		CronSchedule string
		IsReplaying  bool
	}

	// WorkflowFunc is a user workflow entry point. Code inside must be
	// deterministic: use the Channel, Future, and Go primitives of this
	// package and observe time and randomness only through Now and Random.
	WorkflowFunc func(ctx Context, input *Payloads) (*Payloads, error)

	// Module is the namespace a loaded module exports.
	Module map[string]interface{}

	// RequireFunc resolves a module path to its namespace. The host installs
	// it through SetRequireFunc before InitRuntime.
	RequireFunc func(path string) (Module, error)

	// IsolateExtension is the host-provided coroutine instrumentation
	// capability used for cancellation-scope tracking. A nil extension
	// disables instrumentation.
	IsolateExtension interface {
		CoroutineSpawned(name string)
		CoroutineCompleted(name string)
	}

	// RuntimeOptions configures a WorkflowRuntime. Zero values select a noop
	// logger and metrics scope, the default data converter, and the system
	// clock for host-side latency measurements.
	RuntimeOptions struct {
		Logger        *zap.Logger
		MetricsScope  tally.Scope
		DataConverter DataConverter
		Clock         clock.Clock
	}

	// WorkflowRuntime is the host-facing surface of the deterministic
	// execution core. One runtime drives exactly one workflow run through a
	// stream of activations. All methods must be called from a single
	// goroutine; the runtime owns the scheduling of workflow coroutines.
	WorkflowRuntime struct {
		state            *workflowState
		clock            clock.Clock
		initialized      atomic.Bool
		globalsInstalled atomic.Bool
	}

	// workflowState is the per-run state singleton. It is created by
	// InitRuntime and lives until the host disposes the sandbox.
	workflowState struct {
		info                  *WorkflowInfo
		now                   time.Time
		random                *alea
		workflow              WorkflowFunc
		commands              []*WorkflowCommand
		interceptors          []*WorkflowInterceptors
		nextSeqs              map[resourceKind]uint32
		completions           map[resourceKind]map[uint32]*completion
		blockedConditions     *list.List
		blockedConditionIndex map[uint32]*list.Element
		pendingExternalCalls  []*ExternalCall
		dependencies          map[string]map[string]DependencyFunc
		signalChannels        map[string]*channelImpl
		queryHandlers         map[string]QueryHandler
		knownPatches          map[string]bool
		cancelChannel         *channelImpl
		cancelRequested       bool
		completed             bool
		evicted               bool
		require               RequireFunc
		dispatcher            *dispatcherImpl
		extension             IsolateExtension
		logger                *zap.Logger
		metricsScope          tally.Scope
		dataConverter         DataConverter
	}
)

// mainModulePath is the module the user workflow namespace is loaded from.
const mainModulePath = "main"

// interceptorsExportName is the namespace entry an interceptor module exports.
const interceptorsExportName = "interceptors"

// NewWorkflowRuntime creates a runtime for a single workflow run.
func NewWorkflowRuntime(options RuntimeOptions) *WorkflowRuntime {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := options.MetricsScope
	if scope == nil {
		scope = tally.NoopScope
	}
	dataConverter := options.DataConverter
	if dataConverter == nil {
		dataConverter = getDefaultDataConverter()
	}
	hostClock := options.Clock
	if hostClock == nil {
		hostClock = clock.New()
	}

	return &WorkflowRuntime{
		state: &workflowState{
			nextSeqs:              make(map[resourceKind]uint32),
			completions:           make(map[resourceKind]map[uint32]*completion),
			blockedConditions:     list.New(),
			blockedConditionIndex: make(map[uint32]*list.Element),
			dependencies:          make(map[string]map[string]DependencyFunc),
			signalChannels:        make(map[string]*channelImpl),
			queryHandlers:         make(map[string]QueryHandler),
			knownPatches:          make(map[string]bool),
			cancelChannel:         &channelImpl{name: "cancel"},
			logger:                logger,
			metricsScope:          scope,
			dataConverter:         dataConverter,
		},
		clock: hostClock,
	}
}

// SetRequireFunc installs the module loader used to resolve the user workflow
// and interceptor modules. It must be called before InitRuntime.
func (r *WorkflowRuntime) SetRequireFunc(loader RequireFunc) {
	r.state.require = loader
}

// OverrideGlobals installs the deterministic replacements for ambient
// facilities. It is idempotent and re-asserted by InitRuntime because a
// snapshot restore may drop the installation. The weak-structure stubs and
// the deterministic clock and generator are bound into the workflow context,
// so in this implementation the call only records that installation happened.
func (r *WorkflowRuntime) OverrideGlobals() {
	if r.globalsInstalled.CAS(false, true) {
		r.state.logger.Debug("Deterministic globals installed.")
	}
}

// InitRuntime seeds the run state, loads interceptor modules, and looks up
// the user workflow by type name. A missing workflow type is routed into a
// workflow failure rather than an init error so the service records it.
func (r *WorkflowRuntime) InitRuntime(
	info *WorkflowInfo,
	interceptorModules []string,
	randomnessSeed []byte,
	now time.Time,
	extension IsolateExtension,
) error {
	r.OverrideGlobals()
	if !r.initialized.CAS(false, true) {
		return newIllegalStateError("runtime already initialized")
	}
	if info == nil {
		return newTypeError("workflow info is required")
	}

	ws := r.state
	if ws.require == nil {
		return newIllegalStateError("no module loader installed: call setRequireFunc before initRuntime")
	}

	if info.RunID == "" {
		info.RunID = uuid.New()
	}
	ws.info = info
	ws.now = now
	ws.random = newAlea(randomnessSeed)
	ws.extension = extension

	for _, path := range interceptorModules {
		module, err := ws.require(path)
		if err != nil {
			return fmt.Errorf("loading interceptor module %q: %w", path, err)
		}
		export, ok := module[interceptorsExportName]
		if !ok {
			return newTypeError("interceptor module %q does not export %q", path, interceptorsExportName)
		}
		factory, ok := export.(InterceptorsFactory)
		if !ok {
			if raw, rawOk := export.(func() *WorkflowInterceptors); rawOk {
				factory = raw
			} else {
				return newTypeError("interceptor module %q export %q is not callable", path, interceptorsExportName)
			}
		}
		ws.interceptors = append(ws.interceptors, factory())
	}

	main, err := ws.require(mainModulePath)
	if err != nil {
		ws.failWorkflowLookup(info.WorkflowType, err)
		return nil
	}
	export, ok := main[info.WorkflowType]
	if !ok {
		ws.failWorkflowLookup(info.WorkflowType, nil)
		return nil
	}
	workflow, ok := export.(WorkflowFunc)
	if !ok {
		if raw, rawOk := export.(func(Context, *Payloads) (*Payloads, error)); rawOk {
			workflow = raw
		} else {
			return newTypeError("workflow type %q is not callable", info.WorkflowType)
		}
	}
	ws.workflow = workflow
	ws.logger.Debug("Workflow runtime initialized.",
		zap.String(tagWorkflowType, info.WorkflowType),
		zap.String(tagRunID, info.RunID))
	return nil
}

// failWorkflowLookup records a non-retryable failure for a workflow type that
// could not be resolved. The stack is stripped to a single line: the lookup
// frame chain is host machinery, not user code.
func (ws *workflowState) failWorkflowLookup(workflowType string, cause error) {
	message := fmt.Sprintf("workflow type %q is not defined", workflowType)
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	lookupErr := NewApplicationError(message, true, nil)
	lookupErr.errType = "ReferenceError"
	lookupErr.stackTrace = fmt.Sprintf("ReferenceError: %s", message)
	ws.handleWorkflowFailure(lookupErr)
}

// WorkflowInfo returns the identity record of the run, or nil before
// InitRuntime.
func (r *WorkflowRuntime) WorkflowInfo() *WorkflowInfo {
	return r.state.info
}
