package engine

import (
	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
)

// DependencyGraph is the dependency DAG over the scheduled set. Edges run
// dependency → dependent; edges whose dependency falls outside the set are
// dropped because DONE (or otherwise out-of-scope) dependencies are treated
// as satisfied.
type DependencyGraph struct {
	Dependents map[uuid.UUID][]uuid.UUID
	Indegree   map[uuid.UUID]int
}

// Classification is the outcome of the task filter: which tasks are packed,
// which are reported, and the graph the packer walks.
type Classification struct {
	Scheduled []*domain.Task
	Done      []*domain.Task
	Excluded  []domain.ExcludedTask
	Blocked   []domain.UnscheduledTask
	Graph     *DependencyGraph
	Estimates map[uuid.UUID]int
	ByID      map[uuid.UUID]*domain.Task
}

// Classify splits the raw task set into scheduled / done / excluded /
// blocked and builds the dependency graph over the scheduled subset.
func Classify(tasks []*domain.Task) *Classification {
	byID := make(map[uuid.UUID]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID()] = t
	}

	// A task is a parent when at least one input task points at it.
	parents := make(map[uuid.UUID]bool)
	for _, t := range tasks {
		if pid := t.ParentID(); pid != nil {
			parents[*pid] = true
		}
	}

	cls := &Classification{
		Estimates: make(map[uuid.UUID]int),
		ByID:      byID,
	}

	candidates := make([]*domain.Task, 0, len(tasks))
	candidateIDs := make(map[uuid.UUID]bool)
	for _, t := range tasks {
		switch {
		case t.IsDone():
			cls.Done = append(cls.Done, t)
		case t.IsWaiting():
			cls.Excluded = append(cls.Excluded, domain.ExcludedTask{
				TaskID: t.ID(), Title: t.Title(), Reason: domain.ExcludedWaiting,
			})
		case parents[t.ID()]:
			cls.Excluded = append(cls.Excluded, domain.ExcludedTask{
				TaskID: t.ID(), Title: t.Title(), Reason: domain.ExcludedParentTask,
			})
		default:
			candidates = append(candidates, t)
			candidateIDs[t.ID()] = true
		}
	}

	// Blocked classification is a single pass: a dependency that is itself a
	// blocked candidate still counts as a candidate here, and its edge is
	// dropped below.
	scheduledIDs := make(map[uuid.UUID]bool, len(candidates))
	for _, t := range candidates {
		blocked := false
		for _, depID := range t.DependencyIDs() {
			dep, present := byID[depID]
			if !present {
				cls.Blocked = append(cls.Blocked, domain.UnscheduledTask{
					TaskID: t.ID(), Reason: domain.UnscheduledDependencyMissing,
				})
				blocked = true
				break
			}
			if dep.IsDone() || candidateIDs[depID] {
				continue
			}
			cls.Blocked = append(cls.Blocked, domain.UnscheduledTask{
				TaskID: t.ID(), Reason: domain.UnscheduledDependencyUnresolved,
			})
			blocked = true
			break
		}
		if !blocked {
			cls.Scheduled = append(cls.Scheduled, t)
			scheduledIDs[t.ID()] = true
		}
	}

	graph := &DependencyGraph{
		Dependents: make(map[uuid.UUID][]uuid.UUID),
		Indegree:   make(map[uuid.UUID]int, len(cls.Scheduled)),
	}
	for _, t := range cls.Scheduled {
		graph.Indegree[t.ID()] = 0
	}
	for _, t := range cls.Scheduled {
		for _, depID := range t.DependencyIDs() {
			if !scheduledIDs[depID] {
				continue
			}
			graph.Dependents[depID] = append(graph.Dependents[depID], t.ID())
			graph.Indegree[t.ID()]++
		}
	}
	cls.Graph = graph

	children := childIndex(tasks)
	for _, t := range cls.Scheduled {
		cls.Estimates[t.ID()] = effectiveEstimate(t, children)
	}
	return cls
}

// EffectiveEstimate is the recursive leaf sum of the task's subtree within
// the input set, defaulting when the whole subtree carries no estimate.
func EffectiveEstimate(task *domain.Task, all []*domain.Task) int {
	return effectiveEstimate(task, childIndex(all))
}

func childIndex(tasks []*domain.Task) map[uuid.UUID][]*domain.Task {
	children := make(map[uuid.UUID][]*domain.Task)
	for _, t := range tasks {
		if pid := t.ParentID(); pid != nil {
			children[*pid] = append(children[*pid], t)
		}
	}
	return children
}

func effectiveEstimate(task *domain.Task, children map[uuid.UUID][]*domain.Task) int {
	total := subtreeMinutes(task, children, make(map[uuid.UUID]bool))
	if total <= 0 {
		return domain.DefaultEstimateMinutes
	}
	return total
}

func subtreeMinutes(task *domain.Task, children map[uuid.UUID][]*domain.Task, seen map[uuid.UUID]bool) int {
	if seen[task.ID()] {
		return 0
	}
	seen[task.ID()] = true

	kids := children[task.ID()]
	if len(kids) == 0 {
		if est := task.EstimatedMinutes(); est != nil && *est > 0 {
			return *est
		}
		return 0
	}
	total := 0
	for _, child := range kids {
		total += subtreeMinutes(child, children, seen)
	}
	return total
}
