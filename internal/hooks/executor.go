package hooks

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Executor executes hook handlers in sequence.
type Executor struct {
	// recoverPanic determines whether to recover from handler panics.
	recoverPanic bool
}

// NewExecutor creates a new hook executor.
func NewExecutor() *Executor {
	return &Executor{
		recoverPanic: true,
	}
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithPanicRecovery sets whether the executor should recover from panics.
func WithPanicRecovery(recover bool) ExecutorOption {
	return func(e *Executor) {
		e.recoverPanic = recover
	}
}

// NewExecutorWithOptions creates a new hook executor with options.
func NewExecutorWithOptions(opts ...ExecutorOption) *Executor {
	e := NewExecutor()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs handlers in priority order.
// A handler returning Continue=false stops the chain; a Block result is
// carried into the final result. Async handlers are started and not waited on.
func (e *Executor) Execute(ctx context.Context, handlers []*Handler, hookCtx *Context) *Result {
	if len(handlers) == 0 {
		return ContinueResult()
	}

	finalResult := &Result{
		Continue: true,
		Modified: false,
		Data:     make(map[string]any),
	}

	for _, handler := range handlers {
		if !handler.Enabled {
			continue
		}

		if handler.Async {
			e.executeAsync(ctx, handler, hookCtx)
			continue
		}

		result, err := e.executeHandler(ctx, handler, hookCtx)
		if err != nil {
			log.Error().
				Err(err).
				Str("handler_id", handler.ID).
				Str("hook_type", string(hookCtx.Type)).
				Msg("handler execution error")

			if result != nil && !result.Continue {
				finalResult.Continue = false
				finalResult.Error = err
				break
			}
			continue
		}

		if result != nil && result.Modified && result.Data != nil {
			finalResult.Modified = true
			for k, v := range result.Data {
				finalResult.Data[k] = v
				hookCtx.SetData(k, v)
			}
		}

		if result != nil && result.Block {
			finalResult.Block = true
			finalResult.BlockReason = result.BlockReason
			finalResult.Continue = false
			log.Debug().
				Str("handler_id", handler.ID).
				Str("hook_type", string(hookCtx.Type)).
				Str("reason", result.BlockReason).
				Msg("hook blocked the call")
			break
		}

		if result != nil && !result.Continue {
			finalResult.Continue = false
			finalResult.Error = result.Error
			log.Debug().
				Str("handler_id", handler.ID).
				Str("hook_type", string(hookCtx.Type)).
				Msg("hook chain interrupted by handler")
			break
		}
	}

	return finalResult
}

// executeAsync runs handler detached from the caller's cancellation.
func (e *Executor) executeAsync(ctx context.Context, handler *Handler, hookCtx *Context) {
	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := e.executeHandler(detached, handler, hookCtx); err != nil {
			log.Error().
				Err(err).
				Str("handler_id", handler.ID).
				Str("hook_type", string(hookCtx.Type)).
				Msg("async handler error")
		}
	}()
}

// executeHandler executes a single handler with optional panic recovery.
func (e *Executor) executeHandler(ctx context.Context, handler *Handler, hookCtx *Context) (result *Result, err error) {
	if e.recoverPanic {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("handler_id", handler.ID).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("handler panicked")
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				result = ContinueResult() // Allow chain to continue after panic
			}
		}()
	}

	if handler.Handler == nil {
		return ContinueResult(), nil
	}

	return handler.Handler(ctx, hookCtx)
}
