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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTestState() *workflowState {
	rt := NewWorkflowRuntime(RuntimeOptions{})
	rt.state.info = &WorkflowInfo{
		WorkflowType: "test-workflow",
		RunID:        "test-run",
		WorkflowID:   "test-workflow-id",
		TaskQueue:    "test-queue",
		Namespace:    "default",
	}
	rt.state.random = newAlea([]byte{1, 2, 3})
	return rt.state
}

func requireNoExecuteErr(t *testing.T, err error) {
	if err != nil {
		var panicErr *workflowPanicError
		if errors.As(err, &panicErr) {
			require.NoError(t, err, panicErr.StackTrace())
		}
		require.NoError(t, err)
	}
}

func TestDispatcher(t *testing.T) {
	value := "foo"
	d := newDispatcher(createTestState(), func(ctx Context) { value = "bar" })
	require.Equal(t, "foo", value)
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())
	require.Equal(t, "bar", value)
}

func TestNonBlockingChildren(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		for i := 0; i < 10; i++ {
			ii := i
			Go(ctx, func(ctx Context) {
				history = append(history, fmt.Sprintf("child-%v", ii))
			})
		}
		history = append(history, "root")
	})
	require.EqualValues(t, 0, len(history))
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())
	require.EqualValues(t, 11, len(history))
}

func TestNonbufferedChannel(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		c1 := NewChannel(ctx)
		Go(ctx, func(ctx Context) {
			history = append(history, "child-start")
			var v string
			more := c1.Receive(ctx, &v)
			require.True(t, more)
			history = append(history, fmt.Sprintf("child-end-%v", v))
		})
		history = append(history, "root-before-channel-put")
		c1.Send(ctx, "value1")
		history = append(history, "root-after-channel-put")
	})
	require.EqualValues(t, 0, len(history))
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())

	expected := []string{
		"root-before-channel-put",
		"child-start",
		"child-end-value1",
		"root-after-channel-put",
	}
	require.EqualValues(t, expected, history)
}

func TestBufferedChannelPut(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		c1 := NewBufferedChannel(ctx, 1)
		Go(ctx, func(ctx Context) {
			history = append(history, "child-start")
			var v1, v2 string
			require.True(t, c1.Receive(ctx, &v1))
			history = append(history, fmt.Sprintf("child-end-%v", v1))
			require.True(t, c1.Receive(ctx, &v2))
			history = append(history, fmt.Sprintf("child-end-%v", v2))
		})
		history = append(history, "root-before-channel-put")
		c1.Send(ctx, "value1")
		c1.Send(ctx, "value2")
		history = append(history, "root-after-channel-put")
	})
	require.EqualValues(t, 0, len(history))
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())

	expected := []string{
		"root-before-channel-put",
		"child-start",
		"child-end-value1",
		"child-end-value2",
		"root-after-channel-put",
	}
	require.EqualValues(t, expected, history)
}

func TestChannelClose(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		c1 := NewChannel(ctx)
		Go(ctx, func(ctx Context) {
			var v string
			for {
				more := c1.Receive(ctx, &v)
				if !more {
					history = append(history, "child-done")
					return
				}
				history = append(history, fmt.Sprintf("child-got-%v", v))
			}
		})
		c1.Send(ctx, "value1")
		c1.Close()
		history = append(history, "root-done")
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone(), d.StackTrace())

	expected := []string{
		"child-got-value1",
		"root-done",
		"child-done",
	}
	require.EqualValues(t, expected, history)
}

func TestSendAsync(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		c1 := NewBufferedChannel(ctx, 1)
		require.True(t, c1.SendAsync("value1"))
		require.False(t, c1.SendAsync("value2"), "buffer is full")
		var v string
		require.True(t, c1.ReceiveAsync(&v))
		history = append(history, fmt.Sprintf("root-got-%v", v))
		require.False(t, c1.ReceiveAsync(&v))
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())
	require.EqualValues(t, []string{"root-got-value1"}, history)
}

func TestFuture(t *testing.T) {
	var history []string
	d := newDispatcher(createTestState(), func(ctx Context) {
		future, settable := NewFuture(ctx)
		Go(ctx, func(ctx Context) {
			history = append(history, "child-start")
			settable.SetValue("value1")
			history = append(history, "child-end")
		})
		history = append(history, "root-before-get")
		var v string
		require.NoError(t, future.Get(ctx, &v))
		require.True(t, future.IsReady())
		history = append(history, fmt.Sprintf("root-got-%v", v))
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())

	expected := []string{
		"root-before-get",
		"child-start",
		"child-end",
		"root-got-value1",
	}
	require.EqualValues(t, expected, history)
}

func TestFutureError(t *testing.T) {
	d := newDispatcher(createTestState(), func(ctx Context) {
		future, settable := NewFuture(ctx)
		Go(ctx, func(ctx Context) {
			settable.SetError(errors.New("boom"))
		})
		err := future.Get(ctx, nil)
		require.EqualError(t, err, "boom")
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.True(t, d.IsDone())
}

func TestPanicInCoroutine(t *testing.T) {
	d := newDispatcher(createTestState(), func(ctx Context) {
		panic("simulated failure")
	})
	err := d.ExecuteUntilAllBlocked()
	require.Error(t, err)
	var panicErr *workflowPanicError
	require.True(t, errors.As(err, &panicErr))
	require.Equal(t, "simulated failure", panicErr.Error())
	require.True(t, strings.Contains(panicErr.StackTrace(), "panic"))
}

func TestDispatcherClose(t *testing.T) {
	var reached bool
	d := newDispatcher(createTestState(), func(ctx Context) {
		c := NewChannel(ctx)
		var v string
		c.Receive(ctx, &v) // blocks forever
		reached = true
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	require.False(t, d.IsDone())
	require.True(t, strings.Contains(d.StackTrace(), "blocked on"))
	d.Close()
	require.False(t, reached)
}

func TestBlockedReceiveStackTrace(t *testing.T) {
	d := newDispatcher(createTestState(), func(ctx Context) {
		NewNamedChannel(ctx, "notifications").Receive(ctx, nil)
	})
	requireNoExecuteErr(t, d.ExecuteUntilAllBlocked())
	defer d.Close()
	trace := d.StackTrace()
	require.True(t, strings.Contains(trace, "blocked on notifications.Receive"), trace)
}
