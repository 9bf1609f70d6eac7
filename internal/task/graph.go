package task

import (
	"iter"
	"slices"
)

// Lookup resolves a task id to a task, or nil when absent.
type Lookup func(id int64) *Task

// MapLookup adapts a map to a Lookup.
func MapLookup(tasks map[int64]*Task) Lookup {
	return func(id int64) *Task { return tasks[id] }
}

// DetectCycle checks whether adding the edge taskID -> dependsOnID would
// create a cycle. It returns the cycle path if so, nil otherwise.
// Each call uses its own visited and path sets, so a diamond (two branches
// reaching the same task) is not reported as a cycle.
func DetectCycle(taskID, dependsOnID int64, lookup Lookup) []int64 {
	if taskID == dependsOnID {
		return []int64{taskID, taskID}
	}

	depsOf := func(id int64) []int64 {
		var deps []int64
		if t := lookup(id); t != nil {
			deps = t.Dependencies
		}
		if id == taskID && !slices.Contains(deps, dependsOnID) {
			// Simulate the proposed edge without touching the task.
			deps = append(slices.Clone(deps), dependsOnID)
		}
		return deps
	}

	visited := make(map[int64]bool)
	path := make(map[int64]bool)
	var cyclePath []int64

	var dfs func(id int64) bool
	dfs = func(id int64) bool {
		if path[id] {
			cyclePath = append(cyclePath, id)
			return true
		}
		if visited[id] {
			return false
		}

		visited[id] = true
		path[id] = true

		for _, dep := range depsOf(id) {
			if dfs(dep) {
				cyclePath = append(cyclePath, id)
				return true
			}
		}

		path[id] = false
		return false
	}

	if dfs(taskID) {
		slices.Reverse(cyclePath)
		return cyclePath
	}
	return nil
}

// CanStart reports whether every dependency of t is completed. A dependency
// that no longer resolves counts as not completed.
func CanStart(t *Task, lookup Lookup) bool {
	for _, depID := range t.Dependencies {
		dep := lookup(depID)
		if dep == nil || !IsDone(dep.Status) {
			return false
		}
	}
	return true
}

// UnblockedBy returns the dependents of completedID that can start now.
func UnblockedBy(completedID int64, lookup Lookup) []int64 {
	done := lookup(completedID)
	if done == nil {
		return nil
	}
	var out []int64
	for _, id := range done.Dependents {
		if dep := lookup(id); dep != nil && CanStart(dep, lookup) {
			out = append(out, id)
		}
	}
	return out
}

// Link records the edge from -> to on both tasks. Existing edges are left as is.
func Link(from, to *Task) {
	if !slices.Contains(from.Dependencies, to.ID) {
		from.Dependencies = append(from.Dependencies, to.ID)
	}
	if !slices.Contains(to.Dependents, from.ID) {
		to.Dependents = append(to.Dependents, from.ID)
	}
}

// Unlink removes the edge from -> to from both tasks if present.
func Unlink(from, to *Task) {
	from.Dependencies = remove(from.Dependencies, to.ID)
	to.Dependents = remove(to.Dependents, from.ID)
}

// Strip removes every reference to id from t's edge lists.
func Strip(t *Task, id int64) {
	t.Dependencies = remove(t.Dependencies, id)
	t.Dependents = remove(t.Dependents, id)
}

func remove(ids []int64, id int64) []int64 {
	out := slices.DeleteFunc(ids, func(v int64) bool { return v == id })
	if len(out) == 0 {
		return nil
	}
	return out
}

// ChainNode is one entry of a dependency chain walk.
type ChainNode struct {
	Task     *Task
	Depth    int
	CanStart bool
}

type chainFrame struct {
	id    int64
	depth int
}

// Chain walks the transitive dependency closure of a task depth first,
// starting with the task itself at depth 0. It is lazy and single use:
// once Next reports false it keeps reporting false.
type Chain struct {
	lookup  Lookup
	stack   []chainFrame
	visited map[int64]bool
	done    bool
}

// NewChain returns a walker rooted at rootID. An unknown root yields an
// empty walk.
func NewChain(rootID int64, lookup Lookup) *Chain {
	return &Chain{
		lookup:  lookup,
		stack:   []chainFrame{{id: rootID}},
		visited: make(map[int64]bool),
	}
}

// Next returns the next node in the walk.
func (c *Chain) Next() (ChainNode, bool) {
	for !c.done && len(c.stack) > 0 {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		if c.visited[top.id] {
			continue
		}
		t := c.lookup(top.id)
		if t == nil {
			continue
		}
		c.visited[top.id] = true

		// Push in reverse so dependencies come out in their listed order.
		for i := len(t.Dependencies) - 1; i >= 0; i-- {
			if dep := t.Dependencies[i]; !c.visited[dep] {
				c.stack = append(c.stack, chainFrame{id: dep, depth: top.depth + 1})
			}
		}

		return ChainNode{
			Task:     t,
			Depth:    top.depth,
			CanStart: CanStart(t, c.lookup),
		}, true
	}
	c.done = true
	c.stack = nil
	return ChainNode{}, false
}

// All drains the walk as an iterator.
func (c *Chain) All() iter.Seq[ChainNode] {
	return func(yield func(ChainNode) bool) {
		for {
			n, ok := c.Next()
			if !ok || !yield(n) {
				return
			}
		}
	}
}
