// Package parallel contains the bounded parallel ForEach() used for worker
// pools plus its error-propagating variant.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1 // Default to 1 if limit is zero or negative
	}
	if length <= 0 {
		return // No iterations to perform
	}

	sem := make(chan struct{}, limit) // Semaphore with buffer size 'limit'
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{} // Acquire semaphore
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore after function exits

			body(i)
		}(i)
	}

	wg.Wait() // Wait for all goroutines to finish
}

// ForEachErr is ForEach for bodies that can fail. Every iteration still
// runs; the first error in iteration order is returned.
func ForEachErr(length, limit int, body func(i int) error) error {
	errs := make([]error, length)
	ForEach(length, limit, func(i int) {
		errs[i] = body(i)
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
