package queue

// readyHeap orders jobs by next-eligible dispatch time; insertion sequence
// breaks ties so equally-eligible queued jobs dispatch FIFO. A retry job
// re-enters at its wake time, not its original queue position.
type readyHeap []*Job

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].WakeAt.Equal(h[j].WakeAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].WakeAt.Before(h[j].WakeAt)
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
