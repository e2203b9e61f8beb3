package blur

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/andresmejia3/blurbox/internal/region"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/sirupsen/logrus"
)

// RangeOptions controls ApplyRange.
type RangeOptions struct {
	// Engines is the number of goroutines blurring frames in parallel.
	Engines int
	// OnFrame is called once per finished frame, possibly from several goroutines.
	OnFrame func(index int)
}

// ApplyRange blurs reg.Rect on every frame in [reg.StartFrame, reg.EndFrame].
func ApplyRange(ctx context.Context, frames []*image.RGBA, reg region.Region, f Filter, opts RangeOptions) error {
	if reg.StartFrame < 0 || reg.EndFrame >= len(frames) || reg.StartFrame > reg.EndFrame {
		return fmt.Errorf("%w: frames %d-%d of %d", region.ErrFrameOutOfRange, reg.StartFrame, reg.EndFrame, len(frames))
	}
	engines := opts.Engines
	if engines < 1 {
		engines = 1
	}
	if n := reg.Frames(); engines > n {
		engines = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskChan := make(chan types.FrameTask, engines)
	errChan := make(chan error, engines)
	var wg sync.WaitGroup

	for i := 0; i < engines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for task := range taskChan {
				if err := f.Apply(frames[task.Index], reg.Rect); err != nil {
					select {
					case errChan <- fmt.Errorf("engine %d, frame %d: %w", id, task.Index, err):
					default:
					}
					cancel()
					return
				}
				if opts.OnFrame != nil {
					opts.OnFrame(task.Index)
				}
			}
		}(i)
	}

	logrus.WithFields(logrus.Fields{
		"filter":  f.String(),
		"region":  reg.String(),
		"engines": engines,
	}).Debug("Blurring frame range")

feed:
	for idx := reg.StartFrame; idx <= reg.EndFrame; idx++ {
		select {
		case taskChan <- types.FrameTask{Index: idx}:
		case <-ctx.Done():
			break feed
		}
	}
	close(taskChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return err
	default:
	}
	return ctx.Err()
}
