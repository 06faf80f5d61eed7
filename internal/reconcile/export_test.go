package reconcile

import "time"

func SetRunnerClock(r *Runner, now func() time.Time) {
	r.now = now
}
