package engine

import (
	"context"
	"time"
)

// Loop выполняет Run, пока есть работа, и ждет следующего срока, сигнала Wake или отмены ctx
func (e *Engine) Loop(ctx context.Context) error {
	return e.loop(ctx, false)
}

// RunUntilIdle выполняет работу, срок которой наступил, и возвращается, когда движок простаивает
func (e *Engine) RunUntilIdle(ctx context.Context) error {
	return e.loop(ctx, true)
}

func (e *Engine) loop(ctx context.Context, untilIdle bool) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Run(ctx) {
			continue
		}

		next := e.NextRunTime()
		if next == 0 {
			continue
		}
		if untilIdle && !e.running {
			return nil
		}

		var due <-chan time.Time
		if next > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.UnixMilli(next).Sub(e.opts.Clock()))
			due = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		case <-due:
		}
	}
}
