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
	"fmt"
	"runtime"
	"strings"
	"sync"
	"unicode"
)

type (
	// Context is carried by every workflow coroutine. Workflow code must use
	// the Channel, Future, and Go primitives of this package instead of native
	// channels, select, and go; it must not observe host time or randomness
	// other than through Now and Random.
	Context interface {
		state() *workflowState
		coroutine() *coroutineState
	}

	workflowContext struct {
		ws  *workflowState
		crt *coroutineState
	}

	// Channel must be used by workflow code instead of a native go channel.
	Channel interface {
		// Receive blocks until a value is available and assigns it to valuePtr.
		// Returns false when the channel is closed and drained.
		Receive(ctx Context, valuePtr interface{}) (more bool)
		// ReceiveAsync tries to receive without blocking. Returns true if a
		// value was available.
		ReceiveAsync(valuePtr interface{}) (ok bool)
		// Send blocks until the value is consumed by a receiver or buffered.
		Send(ctx Context, v interface{})
		// SendAsync tries to send without blocking. Returns true if the value
		// was consumed or buffered.
		SendAsync(v interface{}) (ok bool)
		// Close closes the channel. Blocked receives complete with more=false.
		Close()
	}

	// Future represents a value that becomes ready asynchronously.
	Future interface {
		// Get blocks until the future is ready and assigns its value to
		// valuePtr. Returns the error the future was rejected with, if any.
		Get(ctx Context, valuePtr interface{}) error
		// IsReady returns true when the value or error is set.
		IsReady() bool
	}

	// Settable is the producing side of a Future.
	Settable interface {
		Set(value interface{}, err error)
		SetValue(value interface{})
		SetError(err error)
	}

	// dispatcher is a container of a set of coroutines. It executes them one
	// by one in deterministic order until all are completed or blocked.
	dispatcher interface {
		// ExecuteUntilAllBlocked executes coroutines until all of them are
		// completed or blocked. Returns the error of the first coroutine that
		// panicked.
		ExecuteUntilAllBlocked() error
		// IsDone returns true when all coroutines are completed.
		IsDone() bool
		// Close destroys all coroutines without waiting for their completion.
		Close()
		// StackTrace returns the stack trace of all live coroutines.
		StackTrace() string
	}

	valueCallbackPair struct {
		value    interface{}
		callback func() bool // false indicates the callback didn't accept the value
	}

	// false result means that the callback didn't accept the value and it is
	// still up for delivery.
	receiveCallback func(v interface{}, more bool) bool

	channelImpl struct {
		name            string
		size            int
		buffer          []interface{}
		blockedSends    []valueCallbackPair
		blockedReceives []receiveCallback
		closed          bool
	}

	futureImpl struct {
		value   interface{}
		err     error
		ready   bool
		channel *channelImpl
	}

	// unblockFunc is evaluated by a coroutine yield. When it returns false the
	// yield returns to the caller. stackDepth is the number of stack frames to
	// omit when a stack trace is captured.
	unblockFunc func(status string, stackDepth int) (keepBlocked bool)

	coroutineState struct {
		name         string
		dispatcher   *dispatcherImpl
		aboutToBlock chan bool        // notifies the dispatcher that the coroutine is about to block
		unblock      chan unblockFunc // notifies the coroutine that it should continue executing
		keptBlocked  bool             // the coroutine didn't make progress since the last yield
		closed       bool             // the owning coroutine has finished execution
		panicError   error            // non nil if the coroutine had an unhandled panic
	}

	dispatcherImpl struct {
		sequence        int
		channelSequence int
		coroutines      []*coroutineState
		executing       bool
		mutex           sync.Mutex
		closed          bool
	}
)

const (
	// defaultSignalChannelSize bounds how many undelivered signals a single
	// signal channel buffers before deliveries are dropped.
	defaultSignalChannelSize = 100000
)

var _ Channel = (*channelImpl)(nil)
var _ Future = (*futureImpl)(nil)
var _ Settable = (*futureImpl)(nil)
var _ dispatcher = (*dispatcherImpl)(nil)

var stackBuf [100000]byte

// For troubleshooting stack pretty printing only.
// Set to true to see the full stack trace that includes framework methods.
const disableCleanStackTraces = false

func (c *workflowContext) state() *workflowState {
	return c.ws
}

func (c *workflowContext) coroutine() *coroutineState {
	return c.crt
}

// Go spawns a child coroutine. It must be used instead of the go keyword by
// workflow code.
func Go(ctx Context, f func(ctx Context)) {
	ctx.coroutine().dispatcher.newCoroutine(ctx.state(), f)
}

// GoNamed spawns a named child coroutine. The name appears in stack traces.
func GoNamed(ctx Context, name string, f func(ctx Context)) {
	ctx.coroutine().dispatcher.newNamedCoroutine(ctx.state(), name, f)
}

// NewChannel creates a new unbuffered Channel.
func NewChannel(ctx Context) Channel {
	d := ctx.coroutine().dispatcher
	d.channelSequence++
	return NewNamedChannel(ctx, fmt.Sprintf("chan-%v", d.channelSequence))
}

// NewNamedChannel creates a new unbuffered Channel with a name visible in
// stack traces.
func NewNamedChannel(_ Context, name string) Channel {
	return &channelImpl{name: name}
}

// NewBufferedChannel creates a new Channel with the given buffer size.
func NewBufferedChannel(_ Context, size int) Channel {
	return &channelImpl{size: size}
}

// NewFuture creates a Future and its producing Settable.
func NewFuture(ctx Context) (Future, Settable) {
	f := &futureImpl{channel: NewChannel(ctx).(*channelImpl)}
	return f, f
}

func newReadyFuture(ctx Context, value interface{}, err error) Future {
	f, s := NewFuture(ctx)
	s.Set(value, err)
	return f
}

// newDispatcher creates a dispatcher instance with a root coroutine function.
func newDispatcher(ws *workflowState, root func(ctx Context)) *dispatcherImpl {
	result := &dispatcherImpl{}
	result.newCoroutine(ws, root)
	return result
}

func (f *futureImpl) Get(ctx Context, valuePtr interface{}) error {
	more := f.channel.Receive(ctx, nil)
	if more {
		panic("not closed")
	}
	if !f.ready {
		panic("not ready")
	}
	if f.err != nil || f.value == nil || valuePtr == nil {
		return f.err
	}
	if err := assignValue(valuePtr, f.value); err != nil {
		return err
	}
	return f.err
}

func (f *futureImpl) IsReady() bool {
	return f.ready
}

func (f *futureImpl) Set(value interface{}, err error) {
	if f.ready {
		panic("already set")
	}
	f.value = value
	f.err = err
	f.ready = true
	f.channel.Close()
}

func (f *futureImpl) SetValue(value interface{}) {
	f.Set(value, nil)
}

func (f *futureImpl) SetError(err error) {
	f.Set(nil, err)
}

func (c *channelImpl) Receive(ctx Context, valuePtr interface{}) (more bool) {
	crt := ctx.coroutine()
	hasResult := false
	var result interface{}
	callback := func(v interface{}, m bool) bool {
		result = v
		hasResult = true
		more = m
		return true
	}
	v, ok, more := c.receiveAsyncImpl(callback)
	if ok || !more {
		c.assign(valuePtr, v)
		return more
	}
	for {
		if hasResult {
			crt.unblocked()
			c.assign(valuePtr, result)
			return more
		}
		crt.yield(fmt.Sprintf("blocked on %s.Receive", c.name))
	}
}

func (c *channelImpl) ReceiveAsync(valuePtr interface{}) (ok bool) {
	v, ok, _ := c.receiveAsyncImpl(nil)
	if ok {
		c.assign(valuePtr, v)
	}
	return ok
}

// ok = true means that a value was received.
// more = true means that the channel is not closed.
func (c *channelImpl) receiveAsyncImpl(callback receiveCallback) (v interface{}, ok bool, more bool) {
	if len(c.buffer) > 0 {
		r := c.buffer[0]
		c.buffer = c.buffer[1:]
		return r, true, true
	}
	if c.closed {
		return nil, false, false
	}
	for len(c.blockedSends) > 0 {
		b := c.blockedSends[0]
		c.blockedSends = c.blockedSends[1:]
		if b.callback() {
			return b.value, true, true
		}
	}
	if callback != nil {
		c.blockedReceives = append(c.blockedReceives, callback)
	}
	return nil, false, true
}

func (c *channelImpl) Send(ctx Context, v interface{}) {
	crt := ctx.coroutine()
	valueConsumed := false
	pair := &valueCallbackPair{
		value: v,
		callback: func() bool {
			valueConsumed = true
			return true
		},
	}
	ok := c.sendAsyncImpl(v, pair)
	if ok {
		crt.unblocked()
		return
	}
	for {
		// Check for closed in the loop as close can be called when send is blocked.
		if c.closed {
			panic("closed channel")
		}
		if valueConsumed {
			crt.unblocked()
			return
		}
		crt.yield(fmt.Sprintf("blocked on %s.Send", c.name))
	}
}

func (c *channelImpl) SendAsync(v interface{}) (ok bool) {
	return c.sendAsyncImpl(v, nil)
}

func (c *channelImpl) sendAsyncImpl(v interface{}, pair *valueCallbackPair) (ok bool) {
	if c.closed {
		panic("closed channel")
	}
	for len(c.blockedReceives) > 0 {
		blockedGet := c.blockedReceives[0]
		c.blockedReceives = c.blockedReceives[1:]
		// false from the callback indicates that the value wasn't consumed
		if blockedGet(v, true) {
			return true
		}
	}
	if len(c.buffer) < c.size {
		c.buffer = append(c.buffer, v)
		return true
	}
	if pair != nil {
		c.blockedSends = append(c.blockedSends, *pair)
	}
	return false
}

func (c *channelImpl) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for i := 0; i < len(c.blockedReceives); i++ {
		callback := c.blockedReceives[i]
		callback(nil, false)
	}
	c.blockedReceives = nil
	// All blocked sends are going to panic.
	for i := 0; i < len(c.blockedSends); i++ {
		b := c.blockedSends[i]
		b.callback()
	}
	c.blockedSends = nil
}

func (c *channelImpl) assign(valuePtr interface{}, v interface{}) {
	if valuePtr == nil || v == nil {
		return
	}
	if err := assignValue(valuePtr, v); err != nil {
		panic(err)
	}
}

// initialYield is called at the beginning of the coroutine execution.
// stackDepth is the depth of the top of the stack to omit when a stack trace
// is generated to hide frames internal to the framework.
func (s *coroutineState) initialYield(stackDepth int, status string) {
	keepBlocked := true
	for keepBlocked {
		f := <-s.unblock
		keepBlocked = f(status, stackDepth+1)
	}
}

// yield indicates that the coroutine cannot make progress and should sleep.
// This call blocks.
func (s *coroutineState) yield(status string) {
	s.aboutToBlock <- true
	s.initialYield(3, status) // omit three levels of stack. To adjust change to 0 and count the lines to remove.
	s.keptBlocked = true
}

func getStackTrace(coroutineName, status string, stackDepth int) string {
	top := fmt.Sprintf("coroutine %s [%s]:", coroutineName, status)
	// Omit top stackDepth frames + the top status line.
	// Omit the bottom two frames which wrap the coroutine in a goroutine.
	return getStackTraceRaw(top, stackDepth*2+1, 4)
}

func getStackTraceRaw(top string, omitTop, omitBottom int) string {
	stack := stackBuf[:runtime.Stack(stackBuf[:], false)]
	rawStack := strings.TrimRightFunc(string(stack), unicode.IsSpace)
	if disableCleanStackTraces {
		return rawStack
	}
	lines := strings.Split(rawStack, "\n")
	if len(lines) > omitTop+omitBottom {
		lines = lines[omitTop : len(lines)-omitBottom]
	}
	lines = append([]string{top}, lines...)
	return strings.Join(lines, "\n")
}

// unblocked is called by the coroutine to indicate that it made progress since
// the last yield.
func (s *coroutineState) unblocked() {
	s.keptBlocked = false
}

func (s *coroutineState) call() {
	s.unblock <- func(status string, stackDepth int) bool {
		return false // unblock
	}
	<-s.aboutToBlock
}

func (s *coroutineState) close() {
	s.closed = true
	s.aboutToBlock <- true
}

func (s *coroutineState) exit() {
	if !s.closed {
		s.unblock <- func(status string, stackDepth int) bool {
			runtime.Goexit()
			return true
		}
	}
}

func (s *coroutineState) stackTrace() string {
	if s.closed {
		return ""
	}
	stackCh := make(chan string, 1)
	s.unblock <- func(status string, stackDepth int) bool {
		stackCh <- getStackTrace(s.name, status, stackDepth+2)
		return true
	}
	return <-stackCh
}

func (d *dispatcherImpl) newCoroutine(ws *workflowState, f func(ctx Context)) {
	d.newNamedCoroutine(ws, fmt.Sprintf("%v", d.sequence+1), f)
}

func (d *dispatcherImpl) newNamedCoroutine(ws *workflowState, name string, f func(ctx Context)) {
	state := d.newState(name)
	ctx := &workflowContext{ws: ws, crt: state}
	if ext := ws.extension; ext != nil {
		ext.CoroutineSpawned(name)
	}
	go func(crt *coroutineState) {
		defer crt.close()
		defer func() {
			if ext := ws.extension; ext != nil {
				ext.CoroutineCompleted(crt.name)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				st := getStackTrace(name, "panic", 4)
				if de, ok := r.(*DeterminismViolationError); ok {
					crt.panicError = de
				} else {
					crt.panicError = newWorkflowPanicError(r, st)
				}
			}
		}()
		crt.initialYield(1, "")
		f(ctx)
	}(state)
}

func (d *dispatcherImpl) newState(name string) *coroutineState {
	c := &coroutineState{
		name:         name,
		dispatcher:   d,
		aboutToBlock: make(chan bool, 1),
		unblock:      make(chan unblockFunc),
	}
	d.sequence++
	d.coroutines = append(d.coroutines, c)
	return c
}

func (d *dispatcherImpl) ExecuteUntilAllBlocked() error {
	d.mutex.Lock()
	if d.closed {
		panic("dispatcher is closed")
	}
	if d.executing {
		panic("call to ExecuteUntilAllBlocked (possibly from a coroutine) while it is already running")
	}
	d.executing = true
	d.mutex.Unlock()
	defer func() { d.executing = false }()
	allBlocked := false
	// Keep executing while at least one coroutine makes progress.
	for !allBlocked {
		// Give every coroutine a chance to execute, removing closed ones.
		allBlocked = true
		lastSequence := d.sequence
		for i := 0; i < len(d.coroutines); i++ {
			c := d.coroutines[i]
			if !c.closed {
				c.call()
			}
			// c.call() can close the coroutine so check again.
			if c.closed {
				d.coroutines = append(d.coroutines[:i], d.coroutines[i+1:]...)
				i--
				if c.panicError != nil {
					return c.panicError
				}
				allBlocked = false
			} else {
				allBlocked = allBlocked && (c.keptBlocked || c.closed)
			}
		}
		// Set allBlocked to false if new coroutines were created.
		allBlocked = allBlocked && lastSequence == d.sequence
		if len(d.coroutines) == 0 {
			break
		}
	}
	return nil
}

func (d *dispatcherImpl) IsDone() bool {
	return len(d.coroutines) == 0
}

func (d *dispatcherImpl) Close() {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.closed = true
	d.mutex.Unlock()
	for i := 0; i < len(d.coroutines); i++ {
		c := d.coroutines[i]
		if !c.closed {
			c.exit()
		}
	}
}

func (d *dispatcherImpl) StackTrace() string {
	var result string
	for i := 0; i < len(d.coroutines); i++ {
		c := d.coroutines[i]
		if !c.closed {
			if len(result) > 0 {
				result += "\n\n"
			}
			result += c.stackTrace()
		}
	}
	return result
}
