package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order with unique names.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		_ = registry.Register(job)
	}
	return registry
}

// Register adds a job. Nil jobs are skipped and a repeated name is an error.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.find(job.Name()) != nil {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Only narrows the registry to the named jobs, keeping registration order.
// An empty selection returns r unchanged.
func (r *Registry) Only(names ...string) (*Registry, error) {
	wanted := map[string]bool{}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}
	if len(wanted) == 0 {
		return r, nil
	}
	for name := range wanted {
		if r.find(name) == nil {
			return nil, fmt.Errorf("unknown cron job %q (registered: %s)", name, strings.Join(r.Names(), ", "))
		}
	}
	narrowed := &Registry{}
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			narrowed.jobs = append(narrowed.jobs, job)
		}
	}
	return narrowed, nil
}

func (r *Registry) find(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}
