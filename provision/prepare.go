package provision

import (
	"fmt"

	"github.com/alitto/pond"
	"github.com/hanksong/awsbenchmark/inventory"
	"github.com/hanksong/awsbenchmark/target"
	"github.com/schollz/progressbar/v3"
)

// PrepareAll waits for every instance to accept SSH and installs iperf3 on
// it. Instances are prepared concurrently; the first failure is returned
// after all of them finish.
func PrepareAll(instances []inventory.Instance, targets func(in inventory.Instance) target.Target, user string, concurrency int) error {
	if concurrency == 0 {
		concurrency = len(instances)
	}
	errChan := make(chan error, len(instances))
	pool := pond.New(concurrency, 0, pond.MinWorkers(concurrency))
	p := progressbar.Default(int64(len(instances)), "Preparing instances:")
	for _, in := range instances {
		pool.Submit(func() {
			defer p.Add(1)

			t := targets(in)
			if err := WaitReachable(t, user); err != nil {
				errChan <- fmt.Errorf("instance %s: %w", in.Label(), err)
				return
			}
			if err := InstallIperf(t); err != nil {
				errChan <- fmt.Errorf("instance %s: %w", in.Label(), err)
				return
			}
		})
	}
	pool.StopAndWait()
	p.Finish()

	select {
	case err := <-errChan:
		return fmt.Errorf("some instances failed to prepare: %w", err)
	default:
		return nil
	}
}
