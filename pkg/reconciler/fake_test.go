package reconciler

import (
	"context"
	"errors"
	"sync"
)

// fakeRelation simulates the server side of one relation
type fakeRelation struct {
	mu       sync.Mutex
	server   Set
	failOn   map[string]error
	loadErr  error
	calls    []string
	loads    int
	gate     chan struct{}
	started  chan string
	holds    map[string]chan struct{}
	inFlight int
	maxSeen  int
}

func newFakeRelation(ids ...string) *fakeRelation {
	return &fakeRelation{server: NewSet(ids...), failOn: map[string]error{}}
}

func (f *fakeRelation) Load(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.server.Sorted(), nil
}

func (f *fakeRelation) Assign(ctx context.Context, id string) error {
	return f.do(ctx, "assign", id, func() { f.server.Add(id) })
}

func (f *fakeRelation) Unassign(ctx context.Context, id string) error {
	return f.do(ctx, "unassign", id, func() { f.server.Remove(id) })
}

func (f *fakeRelation) do(ctx context.Context, op, id string, apply func()) error {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+id)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	gate, started := f.gate, f.started
	if hold := f.holds[id]; hold != nil {
		gate = hold
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[op+":"+id]; err != nil {
		return err
	}
	apply()
	return nil
}

func (f *fakeRelation) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRelation) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// hold blocks calls for id until the returned channel is closed
func (f *fakeRelation) hold(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holds == nil {
		f.holds = map[string]chan struct{}{}
	}
	ch := make(chan struct{})
	f.holds[id] = ch
	return ch
}

func (f *fakeRelation) fail(op, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op+":"+id] = err
}

var errRejected = errors.New("rejected")
