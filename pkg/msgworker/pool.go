package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is one unit of inbound work, typically a webhook round trip followed
// by reply relays. Jobs with the same (AccountID, Sender) run in order.
type Job struct {
	AccountID string
	Sender    string
	Handler   func(ctx context.Context) error
}

func (j Job) key() string {
	return j.AccountID + "|" + j.Sender
}

type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats,omitempty"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool shards jobs across a fixed set of workers by FNV hash of the job key,
// so one sender's messages are never processed concurrently or out of order.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	mu         sync.RWMutex // guards enqueue against close on Stop
	stopped    bool

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
}

type worker struct {
	id            int
	jobQueue      chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 6
	}
	if queueSize <= 0 {
		queueSize = 250
	}

	p := &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
	for i := range p.workers {
		p.workers[i] = &worker{id: i, jobQueue: make(chan Job, queueSize), pool: p}
	}
	return p
}

// Start launches the workers. Cancelling ctx makes them drain and exit.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			w.ctx, w.cancel = context.WithCancel(ctx)
			p.wg.Add(1)
			go w.run(&p.wg)
		}
		logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
	})
}

// TryDispatch enqueues without blocking and reports whether the job was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.key())
	atomic.AddInt64(&p.totalDispatched, 1)

	select {
	case p.workers[shard].jobQueue <- job:
		return true
	default:
		atomic.AddInt64(&p.totalDropped, 1)
		logrus.WithFields(logrus.Fields{
			"account_id": job.AccountID,
			"sender":     job.Sender,
			"worker":     shard,
		}).Warn("[MSG_WORKER_POOL] Worker queue full, dropping job")
		return false
	}
}

// Stop closes every queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		logrus.Info("[MSG_WORKER_POOL] Stopping workers...")

		p.mu.Lock()
		p.stopped = true
		for _, w := range p.workers {
			close(w.jobQueue)
		}
		p.mu.Unlock()

		p.wg.Wait()
		for _, w := range p.workers {
			if w.cancel != nil {
				w.cancel()
			}
		}
		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
	}
}

// run processes jobs until the queue is closed. Jobs left in the queue when
// the context is cancelled still run, with the cancelled context.
func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[MSG_WORKER_POOL] Worker %d started", w.id)

	for job := range w.jobQueue {
		w.process(job)
	}
	logrus.Debugf("[MSG_WORKER_POOL] Worker %d shutting down", w.id)
}

func (w *worker) process(job Job) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, job.key(), r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).WithFields(logrus.Fields{
			"account_id": job.AccountID,
			"sender":     job.Sender,
		}).Errorf("[MSG_WORKER_POOL] Worker %d job failed", w.id)
	}
}
