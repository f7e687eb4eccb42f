package jobaccess

import (
	"context"

	"cartographer/internal/api"
	"cartographer/internal/daemonctl"
	"cartographer/internal/jobs"
	"cartographer/internal/services"
)

// Access reads job history whether the daemon is running or not.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, limit int, states []string) ([]api.Job, error)
	Get(ctx context.Context, id string) (*api.Job, error)
}

// NewDaemonAccess returns an Access backed by the daemon HTTP API.
func NewDaemonAccess(client *daemonctl.Client) Access {
	return &daemonAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *jobs.Store) Access {
	return &storeAccess{store: store}
}

type daemonAccess struct {
	client *daemonctl.Client
}

func (a *daemonAccess) Stats(ctx context.Context) (map[string]int, error) {
	health, err := a.client.Health(ctx)
	if err != nil {
		return nil, err
	}
	return health.Jobs, nil
}

func (a *daemonAccess) List(ctx context.Context, limit int, states []string) ([]api.Job, error) {
	return a.client.Jobs(ctx, limit, states...)
}

func (a *daemonAccess) Get(ctx context.Context, id string) (*api.Job, error) {
	return a.client.Job(ctx, id)
}

type storeAccess struct {
	store *jobs.Store
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for state, count := range stats {
		out[string(state)] = count
	}
	return out, nil
}

func (a *storeAccess) List(ctx context.Context, limit int, states []string) ([]api.Job, error) {
	var filters []jobs.State
	for _, s := range states {
		parsed, ok := jobs.ParseState(s)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "jobaccess", "list", "unknown state "+s, nil)
		}
		filters = append(filters, parsed)
	}
	list, err := a.store.List(ctx, limit, filters...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(list), nil
}

func (a *storeAccess) Get(ctx context.Context, id string) (*api.Job, error) {
	job, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromJob(job)
	return &dto, nil
}
