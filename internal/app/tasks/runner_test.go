package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imgcache/configs"
)

func testConfig() *configs.TasksConfig {
	return &configs.TasksConfig{
		Workers:     2,
		QueueSize:   16,
		TaskTimeout: 5 * time.Second,
	}
}

func TestSubmittedTasksRunBeforeShutdown(t *testing.T) {
	runner := NewRunner(testConfig(), nil)

	var executed atomic.Int64
	for i := 0; i < 10; i++ {
		ok := runner.Submit(fmt.Sprintf("task-%d", i), func(ctx context.Context) error {
			executed.Add(1)
			return nil
		})
		if !ok {
			t.Fatalf("Submit rejected task %d", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	// 关闭排空语义：已入队的任务必然执行
	if got := executed.Load(); got != 10 {
		t.Errorf("expected 10 executed tasks, got %d", got)
	}
}

func TestSubmitAfterShutdownRejected(t *testing.T) {
	runner := NewRunner(testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	if runner.Submit("late", func(ctx context.Context) error { return nil }) {
		t.Error("expected Submit to reject task after shutdown")
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	config := &configs.TasksConfig{Workers: 1, QueueSize: 1, TaskTimeout: 5 * time.Second}
	runner := NewRunner(config, nil)

	block := make(chan struct{})
	// 占住唯一worker
	runner.Submit("blocker", func(ctx context.Context) error {
		<-block
		return nil
	})
	// 填满队列
	runner.Submit("queued", func(ctx context.Context) error { return nil })

	// 等待blocker被worker取走，queued占满队列
	deadline := time.Now().Add(time.Second)
	rejected := false
	for time.Now().Before(deadline) {
		if !runner.Submit("overflow", func(ctx context.Context) error { return nil }) {
			rejected = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(block)

	if !rejected {
		t.Error("expected Submit to reject when queue is full")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = runner.Shutdown(ctx)
}

func TestFailedTaskCounted(t *testing.T) {
	runner := NewRunner(testConfig(), nil)

	runner.Submit("failing", func(ctx context.Context) error {
		return fmt.Errorf("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	_, failed := runner.Stats()
	if failed != 1 {
		t.Errorf("expected 1 failed task, got %d", failed)
	}
}

func TestConcurrentSubmitDuringShutdown(t *testing.T) {
	// Submit和Shutdown并发执行不能触发向已关闭通道发送
	for i := 0; i < 50; i++ {
		runner := NewRunner(testConfig(), nil)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					runner.Submit("concurrent", func(ctx context.Context) error {
						return nil
					})
				}
			}()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := runner.Shutdown(ctx); err != nil {
			cancel()
			t.Fatalf("Shutdown error: %v", err)
		}
		cancel()
		wg.Wait()

		// 关闭后的提交必须被拒绝
		if runner.Submit("late", func(ctx context.Context) error { return nil }) {
			t.Fatal("Submit must reject after shutdown")
		}
	}
}
