package worker

import (
	"context"
	"runtime"
	"sync"
)

type job[I any] struct {
	id   int
	data I
}

type result[O any] struct {
	id  int
	out O
	err error
}

// Pool runs a function over a batch on a fixed number of goroutines.
type Pool struct {
	workers int
}

// NewPool starts n goroutines per batch; n <= 0 means one per CPU.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Pool{workers: n}
}

func (p *Pool) Workers() int { return p.workers }

// RunPool applies fn to every input and returns outputs and errors in input
// order. Inputs not yet started when ctx is done get ctx.Err().
func RunPool[I, O any](ctx context.Context, p *Pool, inputs []I, fn func(I) (O, error)) ([]O, []error) {
	inChan := make(chan job[I], len(inputs))
	outChan := make(chan result[O], len(inputs))
	for i, in := range inputs {
		inChan <- job[I]{i, in}
	}
	close(inChan)

	var wg sync.WaitGroup
	for i := 0; i < min(p.workers, len(inputs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range inChan {
				if err := ctx.Err(); err != nil {
					outChan <- result[O]{id: j.id, err: err}
					continue
				}
				out, err := fn(j.data)
				outChan <- result[O]{j.id, out, err}
			}
		}()
	}
	wg.Wait()
	close(outChan)

	outs := make([]O, len(inputs))
	errs := make([]error, len(inputs))
	for r := range outChan {
		outs[r.id], errs[r.id] = r.out, r.err
	}
	return outs, errs
}
