package core

// IndexedStep is a step together with its zero-based position in the document.
type IndexedStep struct {
	Index int
	Step  Step
}

// Batch is a group of steps executed together. A sequential batch always holds
// exactly one step; a parallel batch holds a maximal run of parallel steps.
type Batch struct {
	Parallel bool
	Steps    []IndexedStep
}

// Scheduler decides the execution order of steps.
type Scheduler struct{}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Batches splits steps into execution batches in document order. Only
// consecutive parallel steps are grouped; any non-parallel step is a barrier.
func (s *Scheduler) Batches(steps []Step) []Batch {
	var batches []Batch
	for cursor := 0; cursor < len(steps); {
		if !steps[cursor].Parallel {
			batches = append(batches, Batch{Steps: []IndexedStep{{Index: cursor, Step: steps[cursor]}}})
			cursor++
			continue
		}
		batch := Batch{Parallel: true}
		for cursor < len(steps) && steps[cursor].Parallel {
			batch.Steps = append(batch.Steps, IndexedStep{Index: cursor, Step: steps[cursor]})
			cursor++
		}
		batches = append(batches, batch)
	}
	return batches
}
