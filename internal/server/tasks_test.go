package server

import (
	"testing"
	"time"
)

func TestTaskQueueRunsInDeadlineOrder(t *testing.T) {
	var q taskQueue
	var order []int
	base := epoch
	q.schedule(base.Add(300*time.Millisecond), func() { order = append(order, 3) })
	q.schedule(base.Add(100*time.Millisecond), func() { order = append(order, 1) })
	q.schedule(base.Add(200*time.Millisecond), func() { order = append(order, 2) })

	q.drain(base.Add(time.Second))
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected deadline order [1 2 3], got %v", order)
	}
	if q.len() != 0 {
		t.Fatalf("expected empty queue after drain, got %d", q.len())
	}
}

func TestTaskQueueLeavesFutureTasks(t *testing.T) {
	var q taskQueue
	ran := 0
	q.schedule(epoch.Add(50*time.Millisecond), func() { ran++ })
	q.schedule(epoch.Add(5*time.Second), func() { ran++ })

	q.drain(epoch.Add(100 * time.Millisecond))
	if ran != 1 {
		t.Fatalf("expected only the due task to run, got %d", ran)
	}
	if q.len() != 1 {
		t.Fatalf("expected 1 task left, got %d", q.len())
	}

	q.drain(epoch.Add(10 * time.Second))
	if ran != 2 {
		t.Fatalf("expected the second task to run later, got %d", ran)
	}
}

func TestTaskQueueRunsTaskDueExactlyNow(t *testing.T) {
	var q taskQueue
	ran := false
	q.schedule(epoch, func() { ran = true })
	q.drain(epoch)
	if !ran {
		t.Fatalf("expected a task due exactly now to run")
	}
}

func TestTaskQueueScheduleDuringDrain(t *testing.T) {
	var q taskQueue
	var order []string
	q.schedule(epoch, func() {
		order = append(order, "first")
		q.schedule(epoch, func() { order = append(order, "nested") })
	})
	q.drain(epoch)
	if len(order) != 2 || order[1] != "nested" {
		t.Fatalf("expected nested task to run in the same drain, got %v", order)
	}
}
