package server

import "time"

// taskQueue is a deadline-ordered min-heap of deferred work, drained once
// per tick by its owner. It replaces fire-and-forget timers: every deferred
// cleanup has an explicit entry here with an explicit owner.
type taskQueue struct {
	items []scheduledTask
}

type scheduledTask struct {
	at time.Time
	fn func()
}

// schedule enqueues fn to run at or after the deadline.
func (q *taskQueue) schedule(at time.Time, fn func()) {
	if fn == nil {
		return
	}
	q.items = append(q.items, scheduledTask{at: at, fn: fn})
	q.up(len(q.items) - 1)
}

// drain runs every task whose deadline has passed, in deadline order.
func (q *taskQueue) drain(now time.Time) {
	for len(q.items) > 0 && !q.items[0].at.After(now) {
		task := q.items[0]
		last := len(q.items) - 1
		q.items[0] = q.items[last]
		q.items = q.items[:last]
		if last > 0 {
			q.down(0)
		}
		task.fn()
	}
}

func (q *taskQueue) len() int {
	return len(q.items)
}

func (q *taskQueue) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.items[i].at.Before(q.items[parent].at) {
			return
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *taskQueue) down(i int) {
	for {
		left := 2*i + 1
		if left >= len(q.items) {
			return
		}
		smallest := left
		if right := left + 1; right < len(q.items) && q.items[right].at.Before(q.items[left].at) {
			smallest = right
		}
		if !q.items[smallest].at.Before(q.items[i].at) {
			return
		}
		q.items[i], q.items[smallest] = q.items[smallest], q.items[i]
		i = smallest
	}
}
