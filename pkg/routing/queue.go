package routing

import "container/heap"

type queueItem struct {
	stopID   string
	distance int
	sequence int
}

// priorityQueue orders by distance, then by push order so equal cost paths resolve the
// same way on every run
type priorityQueue struct {
	items    []*queueItem
	sequence int
}

func (q *priorityQueue) Len() int { return len(q.items) }

func (q *priorityQueue) Less(i, j int) bool {
	if q.items[i].distance != q.items[j].distance {
		return q.items[i].distance < q.items[j].distance
	}
	return q.items[i].sequence < q.items[j].sequence
}

func (q *priorityQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *priorityQueue) Push(x any) {
	q.items = append(q.items, x.(*queueItem))
}

func (q *priorityQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

func (q *priorityQueue) push(stopID string, distance int) {
	heap.Push(q, &queueItem{stopID: stopID, distance: distance, sequence: q.sequence})
	q.sequence++
}
