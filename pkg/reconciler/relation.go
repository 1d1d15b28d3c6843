package reconciler

import (
	"context"
	"errors"
)

// Relation is one many-to-many assignment relation seen from a fixed owner,
// such as the permissions of a role or the roles of a user
type Relation interface {
	// Load returns the ids currently assigned on the server
	Load(ctx context.Context) ([]string, error)
	Assign(ctx context.Context, id string) error
	Unassign(ctx context.Context, id string) error
}

// Funcs adapts plain functions to Relation
type Funcs struct {
	LoadFunc     func(ctx context.Context) ([]string, error)
	AssignFunc   func(ctx context.Context, id string) error
	UnassignFunc func(ctx context.Context, id string) error
}

var errNotSupported = errors.New("reconciler: operation not supported")

func (f Funcs) Load(ctx context.Context) ([]string, error) {
	if f.LoadFunc == nil {
		return nil, errNotSupported
	}
	return f.LoadFunc(ctx)
}

func (f Funcs) Assign(ctx context.Context, id string) error {
	if f.AssignFunc == nil {
		return errNotSupported
	}
	return f.AssignFunc(ctx, id)
}

func (f Funcs) Unassign(ctx context.Context, id string) error {
	if f.UnassignFunc == nil {
		return errNotSupported
	}
	return f.UnassignFunc(ctx, id)
}
