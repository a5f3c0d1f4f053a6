package tasks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"imgcache/configs"
)

// task 一个待执行的后台任务
type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Runner 写回任务执行器
// 请求返回前入队，固定worker池异步执行，关闭时排空队列保证已入队任务必然执行
type Runner struct {
	queue       chan task
	wg          sync.WaitGroup
	logger      *slog.Logger
	taskTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	failed    atomic.Int64
}

// NewRunner 创建任务执行器并启动worker池
func NewRunner(config *configs.TasksConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	r := &Runner{
		queue:       make(chan task, queueSize),
		logger:      logger,
		taskTimeout: config.TaskTimeout,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	logger.Info("写回任务执行器启动", "workers", workers, "queue_size", queueSize)
	return r
}

// Submit 提交一个后台任务
// 队列已满或执行器已关闭时返回false，调用方决定是否降级为同步执行
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) bool {
	// 读锁覆盖检查和入队，避免Shutdown在两步之间关闭队列
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}

	select {
	case r.queue <- task{name: name, fn: fn}:
		r.submitted.Add(1)
		return true
	default:
		r.logger.Warn("写回任务队列已满，任务被拒绝", "task", name)
		return false
	}
}

// worker 循环消费任务直到队列关闭
func (r *Runner) worker() {
	defer r.wg.Done()
	for t := range r.queue {
		r.run(t)
	}
}

// run 执行单个任务，带超时和panic保护
func (r *Runner) run(t task) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if r.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.taskTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.failed.Add(1)
			r.logger.Error("写回任务panic", "task", t.name, "panic", rec)
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		r.failed.Add(1)
		r.logger.Error("写回任务执行失败",
			"task", t.name,
			"duration", time.Since(start),
			"error", err)
		return
	}

	r.logger.Debug("写回任务执行完成", "task", t.name, "duration", time.Since(start))
}

// Shutdown 关闭执行器并排空队列
// 已入队的任务会全部执行完毕，除非ctx先到期
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("写回任务执行器已排空",
			"submitted", r.submitted.Load(),
			"failed", r.failed.Load())
		return nil
	case <-ctx.Done():
		r.logger.Warn("写回任务排空超时", "pending", len(r.queue))
		return ctx.Err()
	}
}

// Stats 返回提交与失败计数
func (r *Runner) Stats() (submitted, failed int64) {
	return r.submitted.Load(), r.failed.Load()
}
