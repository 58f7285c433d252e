package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// WorkerPool manages parallel backtest execution
type WorkerPool struct {
	workerCount int
	jobQueue    chan BacktestJob
	resultQueue chan BacktestResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// BacktestJob is one simulation. Index is its slot in the batch.
type BacktestJob struct {
	Index          int
	StrategyID     string
	Symbol         string
	InitialCapital float64
	Data           []types.OHLCV
	Params         types.ParameterSet

	// Strategy, when set, is run directly instead of resolving StrategyID.
	Strategy strategy.Strategy
}

// BacktestResult represents the result of a backtest job. Error is always a
// ComputationFailure when set.
type BacktestResult struct {
	Index    int
	Params   types.ParameterSet
	Results  *BacktestResults
	Duration time.Duration
	Error    error
}

// NewWorkerPool creates a new worker pool for parallel backtesting
func NewWorkerPool(workerCount int, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan BacktestJob, jobBufferSize),
		resultQueue: make(chan BacktestResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop stops the worker pool gracefully
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob submits a backtest job to the pool
func (wp *WorkerPool) SubmitJob(job BacktestJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// GetResults returns the result channel for collecting completed jobs
func (wp *WorkerPool) GetResults() <-chan BacktestResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs one simulation. Errors and panics are converted into a
// ComputationFailure on the result so one bad combination never stops the
// batch.
func (wp *WorkerPool) processJob(job BacktestJob) (result BacktestResult) {
	startTime := time.Now()
	result = BacktestResult{Index: job.Index, Params: job.Params}

	defer func() {
		if r := recover(); r != nil {
			result.Results = nil
			result.Error = errors.NewComputationError("worker_pool", "simulate", fmt.Errorf("panic: %v", r)).
				WithContext("params", job.Params.Key())
		}
		result.Duration = time.Since(startTime)
		monitoring.RecordSimulation(strategy.ParseKind(job.StrategyID).String(), result.Error != nil, result.Duration)
	}()

	if job.Strategy != nil {
		result.Results = NewBacktestEngine(job.Symbol, job.InitialCapital).Run(job.Strategy, job.Data)
		result.Results.Params = job.Params
		return result
	}

	results, err := Simulate(job.StrategyID, job.Symbol, job.InitialCapital, job.Data, job.Params)
	if err != nil {
		result.Error = errors.NewComputationError("worker_pool", "simulate", err).WithContext("params", job.Params.Key())
		return result
	}
	result.Results = results
	return result
}

// RunBatch executes jobs on workerCount workers and returns the results in
// job order. Each job's Index must be its position in jobs.
func RunBatch(workerCount int, jobs []BacktestJob, progress *ProgressTracker) []BacktestResult {
	if len(jobs) == 0 {
		return nil
	}
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}

	pool := NewWorkerPool(workerCount, len(jobs))
	pool.Start()

	for _, job := range jobs {
		// buffered to len(jobs), never blocks
		_ = pool.SubmitJob(job)
	}

	results := make([]BacktestResult, len(jobs))
	for i := 0; i < len(jobs); i++ {
		result := <-pool.GetResults()
		results[result.Index] = result
		if progress != nil && progress.Increment() {
			completed, total, pct, elapsed := progress.GetProgress()
			log.Debug().
				Int("completed", completed).
				Int("total", total).
				Float64("percent", pct).
				Dur("elapsed", elapsed).
				Dur("eta", progress.EstimateTimeRemaining()).
				Msg("grid search progress")
		}
	}
	pool.Stop()

	return results
}

// ProgressTracker tracks the progress of batch processing
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count and reports whether it crossed
// a 10% milestone short of completion
func (pt *ProgressTracker) Increment() bool {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++

	step := pt.total / 10
	if step < 1 {
		step = 1
	}
	return pt.completed < pt.total && pt.completed%step == 0
}

// GetProgress returns the current progress
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}

	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}

	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	remaining := pt.total - pt.completed

	return avgTimePerItem * time.Duration(remaining)
}
