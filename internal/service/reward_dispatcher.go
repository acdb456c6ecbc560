package service

import (
	"context"
	"errors"
	"fmt"
	"stackcommunity_backend/pkg/logger"
	"stackcommunity_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RewardTask 主写入提交之后执行的奖励副作用，单个任务失败不影响其他任务
type RewardTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// RewardDispatcher 派发奖励任务，任何实现都不能让主流程失败或阻塞
type RewardDispatcher interface {
	Dispatch(ctx context.Context, tasks ...RewardTask)
}

var errDispatcherStopped = errors.New("reward dispatcher stopped")

// runRewardTask 带超时与 panic 恢复地执行单个任务
func runRewardTask(parent context.Context, task RewardTask, timeout time.Duration) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	// 请求返回后 ctx 会被取消，任务只继承其中的值（如 trace）
	ctx := context.WithoutCancel(parent)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reward task %s panicked: %v", task.Name, r)
			monitoring.RewardTasks.WithLabelValues("panic").Inc()
		}
	}()

	if err = task.Run(ctx); err != nil {
		monitoring.RewardTasks.WithLabelValues("failed").Inc()
		return err
	}
	monitoring.RewardTasks.WithLabelValues("ok").Inc()
	return nil
}

func logTaskError(task RewardTask, err error) {
	logger.Log.Warn("reward task failed", zap.String("task", task.Name), zap.Error(err))
}

// InlineDispatcher 在调用方 goroutine 中顺序执行任务
type InlineDispatcher struct {
	Timeout time.Duration
}

func (d InlineDispatcher) Dispatch(ctx context.Context, tasks ...RewardTask) {
	for _, task := range tasks {
		if err := runRewardTask(ctx, task, d.Timeout); err != nil {
			logTaskError(task, err)
		}
	}
}

type queuedTask struct {
	ctx  context.Context
	task RewardTask
}

// AsyncDispatcher 固定数量 worker 消费有界队列，队列满时丢弃任务
type AsyncDispatcher struct {
	queue   chan queuedTask
	timeout time.Duration
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewAsyncDispatcher(workers, queueSize int, timeout time.Duration) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &AsyncDispatcher{
		queue:   make(chan queuedTask, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for item := range d.queue {
		if err := runRewardTask(item.ctx, item.task, d.timeout); err != nil {
			logTaskError(item.task, err)
		}
	}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, tasks ...RewardTask) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, task := range tasks {
		if d.stopped {
			logTaskError(task, errDispatcherStopped)
			monitoring.RewardTasks.WithLabelValues("dropped").Inc()
			continue
		}
		select {
		case d.queue <- queuedTask{ctx: ctx, task: task}:
		default:
			logger.Log.Warn("reward queue full, task dropped", zap.String("task", task.Name))
			monitoring.RewardTasks.WithLabelValues("dropped").Inc()
		}
	}
}

// Stop 停止接收新任务并等待队列中的任务执行完，ctx 到期则直接返回
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
