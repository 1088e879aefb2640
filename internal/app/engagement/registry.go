package engagement

import (
	"context"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/infra/metrics"
)

// Registry hands out one Service per user so that all mutations of a
// user's aggregate in this process go through the same mutex.
type Registry struct {
	mu       sync.Mutex
	store    domain.DocumentStore
	opts     Options
	sessions map[string]*Service
	log      *log.Entry
}

// NewRegistry creates a registry whose services share store and opts
// (including the event bus).
func NewRegistry(store domain.DocumentStore, opts Options) *Registry {
	return &Registry{
		store:    store,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Service),
		log:      log.WithField("component", "registry"),
	}
}

// Bus returns the event bus shared by every service.
func (r *Registry) Bus() *Bus { return r.opts.Bus }

// Clock returns the clock shared by every service.
func (r *Registry) Clock() Clock { return r.opts.Clock }

// Get returns the loaded service for userID, creating it on first use.
// A failed load is returned and retried on the next Get.
func (r *Registry) Get(ctx context.Context, userID string) (*Service, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	r.mu.Lock()
	svc, ok := r.sessions[userID]
	if !ok {
		svc = NewService(userID, r.store, r.opts)
		r.sessions[userID] = svc
		metrics.ActiveUsers.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err := svc.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// Users returns the IDs of all users with a service, sorted.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Rollover runs the weekly pass rollover on every loaded user. It returns
// how many aggregates changed; failures are logged and counted in the
// returned error count.
func (r *Registry) Rollover(ctx context.Context) (rolled, failed int) {
	for _, id := range r.Users() {
		r.mu.Lock()
		svc := r.sessions[id]
		r.mu.Unlock()

		changed, err := svc.Rollover(ctx)
		if err != nil {
			failed++
			r.log.WithError(err).WithField("user", id).Error("rollover failed")
			continue
		}
		if changed {
			rolled++
		}
	}
	return rolled, failed
}
