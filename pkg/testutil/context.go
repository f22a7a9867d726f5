package testutil

import (
	"context"
	"time"

	"dunning/pkg/requestcontext"
)

// ContextAt returns a background context whose request clock reads t.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
