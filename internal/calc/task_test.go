package calc

import (
	"context"
	"testing"
	"time"

	"stockdbv1/internal/model"
)

func TestTask_CompletesAndReportsResult(t *testing.T) {
	reader := &memBars{bars: map[string][]model.DailyBar{"600519": genBars("600519", 100)}}
	runner := NewTaskRunner(newOrchestrator(reader, Options{}), nil)

	task := runner.Submit(context.Background(), Request{
		Symbol: "600519", Indicators: []string{"obv"}, Range: fullRange(),
	})
	if task.ID == "" {
		t.Fatal("task has no ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := runner.Wait(ctx, task.ID)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if task.State() != TaskCompleted {
		t.Errorf("state = %s, want COMPLETED", task.State())
	}
	if res == nil || res.Status["obv"].Status != StatusOK {
		t.Errorf("result = %+v", res)
	}
}

func TestTask_FailurePropagates(t *testing.T) {
	reader := &memBars{bars: map[string][]model.DailyBar{}}
	runner := NewTaskRunner(newOrchestrator(reader, Options{}), nil)

	task := runner.Submit(context.Background(), Request{
		Symbol: "999999", Indicators: []string{"obv"}, Range: fullRange(),
	})
	<-task.Done()
	if task.State() != TaskFailed {
		t.Errorf("state = %s, want FAILED", task.State())
	}
	if _, err := task.Result(); err == nil {
		t.Error("failed task should expose its error")
	}
}

func TestTask_CancelDuringProcessing(t *testing.T) {
	gate := make(chan struct{})
	reader := &memBars{
		bars: map[string][]model.DailyBar{"600519": genBars("600519", 100)},
		gate: gate,
	}
	runner := NewTaskRunner(newOrchestrator(reader, Options{}), nil)

	task := runner.Submit(context.Background(), Request{
		Symbol: "600519", Indicators: []string{"obv"}, Range: fullRange(),
	})

	// Let the task reach PROCESSING (blocked on the reader gate).
	deadline := time.Now().Add(2 * time.Second)
	for task.State() == TaskPending && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if task.State() != TaskProcessing {
		t.Fatalf("state = %s, want PROCESSING", task.State())
	}

	if !task.Cancel() {
		t.Fatal("cancel on a processing task should be accepted")
	}
	close(gate)
	<-task.Done()

	if task.State() != TaskCancelled {
		t.Errorf("state = %s, want CANCELLED", task.State())
	}
	if res, _ := task.Result(); res != nil {
		t.Error("cancelled task must not expose a result")
	}

	// Terminal tasks reject further cancellation and can be forgotten.
	if task.Cancel() {
		t.Error("cancel on a terminal task should report false")
	}
	runner.Forget(task.ID)
	if _, ok := runner.Get(task.ID); ok {
		t.Error("forgotten task still indexed")
	}
}

func TestTask_WaitHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	reader := &memBars{
		bars: map[string][]model.DailyBar{"600519": genBars("600519", 100)},
		gate: gate,
	}
	runner := NewTaskRunner(newOrchestrator(reader, Options{}), nil)

	task := runner.Submit(context.Background(), Request{
		Symbol: "600519", Indicators: []string{"obv"}, Range: fullRange(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := runner.Wait(ctx, task.ID); err == nil {
		t.Fatal("wait should time out while the task is blocked")
	}

	if _, err := runner.Wait(context.Background(), "no-such-task"); err == nil {
		t.Error("waiting on an unknown task should error")
	}
}
