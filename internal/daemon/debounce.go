package daemon

import "time"

// Debounce collapses bursts of paths into a single signal once delay has
// passed without a new path arriving.
func Debounce(inCh <-chan string, delay time.Duration) <-chan struct{} {
	outCh := make(chan struct{}, 1)

	go func() {
		defer close(outCh)

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case _, ok := <-inCh:
				if !ok {
					if fire != nil {
						timer.Stop()
						signal(outCh)
					}
					return
				}

				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(delay)
				fire = timer.C

			case <-fire:
				fire = nil
				signal(outCh)
			}
		}
	}()

	return outCh
}

func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
