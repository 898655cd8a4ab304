package worker

import (
	"errors"
	"sync"

	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

var ErrStopped = errors.New("workers stopped")

// WorkerManager fans jobs from a buffered channel out to a fixed number of
// goroutines. Start blocks until Exit is called.
type WorkerManager struct {
	numberOfWorker int
	jobChannel     chan interface{}
	quit           chan struct{}
	once           sync.Once
	do             WorkerHandler
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan interface{}, bufferSize),
		quit:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue hands a job to the pool. It returns false once the pool is
// stopped instead of blocking forever.
func (w *WorkerManager) Enqueue(val interface{}) bool {
	select {
	case w.jobChannel <- val:
		return true
	case <-w.quit:
		return false
	}
}

func (w *WorkerManager) Start() error {
	if w.do == nil {
		return errors.New("worker handler is not set")
	}
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.quit:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
	return ErrStopped
}

// Exit stops every worker after its current job. Jobs still buffered are
// dropped. Safe to call more than once.
func (w *WorkerManager) Exit() {
	w.once.Do(func() {
		logger.Info("worker pool shutting down", "workers", w.numberOfWorker, "unread", len(w.jobChannel))
		close(w.quit)
	})
}
