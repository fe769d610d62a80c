package pool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkFunc handles one task. Any error it returns is fatal to the pool's tomb.
type WorkFunc[T any] func(t *tomb.Tomb, task T) error

type WorkerPool[T any] struct {
	n     int    // number of workers
	tasks chan T // pending tasks
}

func New[T any](size int) *WorkerPool[T] {
	if size < 1 {
		size = 1
	}
	return &WorkerPool[T]{
		n:     size,
		tasks: make(chan T, taskChanSize),
	}
}

func (pool *WorkerPool[T]) Size() int { return pool.n }

// AddTask queues a task, waiting for room. It reports false when t is dying
// and the task was not queued.
func (pool *WorkerPool[T]) AddTask(t *tomb.Tomb, task T) bool {
	select {
	case pool.tasks <- task:
		return true
	case <-t.Dying():
		return false
	}
}

// Run starts the workers on t. They exit when t starts dying.
func (pool *WorkerPool[T]) Run(t *tomb.Tomb, work WorkFunc[T]) {
	for id := range pool.n {
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// Workers wait on tasks and action them.
func (pool *WorkerPool[T]) worker(t *tomb.Tomb, id int, work WorkFunc[T]) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
