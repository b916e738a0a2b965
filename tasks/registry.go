// Package tasks holds the functions jobs run, keyed by job command.
package tasks

import (
	"sort"
	"sync"

	"github.com/stevecastle/sarview/jobqueue"
)

// Func runs one claimed job. It settles the job's final state itself; a
// returned error or panic is settled by the runner.
type Func func(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error

// Task is a registered command.
type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Fn   Func   `json:"-"`
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Task{}
)

func init() {
	Register("convert", "Convert Scene", convertTask)
	Register("batch", "Convert Directory", batchTask)
	Register("fetch", "Fetch Product", fetchTask)
	Register("publish", "Publish to S3", publishTask)
	Register("remove", "Remove Scenes", removeTask)
	Register("cleanup", "Clean Up Work Files", cleanUpFn)
	Register("wait", "Wait", waitFn)
}

// Register binds command id to fn, replacing any earlier registration.
func Register(id, name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = Task{ID: id, Name: name, Fn: fn}
}

// Lookup returns the task for command.
func Lookup(command string) (Task, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[command]
	return t, ok
}

// List returns every registered task ordered by ID.
func List() []Task {
	registryMu.RLock()
	list := make([]Task, 0, len(registry))
	for _, t := range registry {
		list = append(list, t)
	}
	registryMu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// unregister is for tests that add throwaway commands.
func unregister(id string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, id)
}
