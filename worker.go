package hyqcore

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

type fieldJob struct {
	step int
	well int
}

// drawdownFields evaluates the drawdown of every well at every timestep,
// indexed [timestep][well]. Pairs are independent, so they are spread across
// up to workers goroutines; the reduction over wells is left to the caller.
func drawdownFields(h0 *mat.Dense, timesteps []float64, wells []*Well, aq AquiferParams, terms, workers int) [][]*mat.Dense {
	out := make([][]*mat.Dense, len(timesteps))
	for k := range out {
		out[k] = make([]*mat.Dense, len(wells))
	}

	total := len(timesteps) * len(wells)
	if workers < 2 || total < 2 {
		for k, t := range timesteps {
			for i, w := range wells {
				out[k][i] = DrawdownField(h0, t, w, aq, terms)
			}
		}
		return out
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan fieldJob, total)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// each job owns a distinct slot, no locking needed
				out[j.step][j.well] = DrawdownField(h0, timesteps[j.step], wells[j.well], aq, terms)
			}
		}()
	}

	for k := range timesteps {
		for i := range wells {
			jobs <- fieldJob{step: k, well: i}
		}
	}
	close(jobs)
	wg.Wait()

	return out
}
