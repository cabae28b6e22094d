package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/caretaker/internal/connectors"
)

// DefaultMaintenanceInterval is how often each routine runs by default.
const DefaultMaintenanceInterval = 30 * time.Minute

// Maintenance is a periodic sub-task that runs after the action of a cycle
// once its interval has passed.
type Maintenance struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Routine wraps a bridge routine as a maintenance task.
func Routine(runner connectors.RoutineRunner, name string, interval time.Duration) Maintenance {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	return Maintenance{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context) error {
			ok, err := runner.RunRoutine(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("routine %s did not complete", name)
			}
			return nil
		},
	}
}
