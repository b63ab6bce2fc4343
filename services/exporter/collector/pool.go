package collector

import "sync"

// workerPool runs submitted tasks on a fixed number of goroutines. It bounds the number of
// concurrent upstream connections, the limiter still decides when each call may start.
type workerPool struct {
	tasks     chan func()
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newWorkerPool(size int) *workerPool {
	pool := &workerPool{
		tasks: make(chan func()),
		stop:  make(chan struct{}),
	}

	pool.wg.Add(size)
	for i := 0; i < size; i++ {
		go pool.work()
	}

	return pool
}

func (pool *workerPool) work() {
	defer pool.wg.Done()

	for {
		select {
		case task := <-pool.tasks:
			task()
		case <-pool.stop:
			return
		}
	}
}

// submit blocks until a worker picks the task up. It returns false if the pool was closed,
// in which case the task will never run.
func (pool *workerPool) submit(task func()) bool {
	select {
	case <-pool.stop:
		return false
	default:
	}

	select {
	case pool.tasks <- task:
		return true
	case <-pool.stop:
		return false
	}
}

// close stops the workers after their current task and waits for them
func (pool *workerPool) close() {
	pool.closeOnce.Do(func() {
		close(pool.stop)
	})
	pool.wg.Wait()
}
