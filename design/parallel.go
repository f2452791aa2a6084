package design

import "sync"

// parallelFor calls fn(i) for i in [0, n) from numCPU goroutines and returns
// once every call finished.
func parallelFor(n, numCPU int, fn func(i int)) {
	if numCPU < 1 {
		numCPU = 1
	}
	if numCPU > n {
		numCPU = n
	}
	if numCPU <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	ic := make(chan int, numCPU)
	var wg sync.WaitGroup
	wg.Add(numCPU)
	for w := 0; w < numCPU; w++ {
		go func() {
			defer wg.Done()
			for i := range ic {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		ic <- i
	}
	close(ic)
	wg.Wait()
}
