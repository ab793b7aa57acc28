package merge

import (
	"context"

	"github.com/pkg/errors"
)

// ErrPrecondition reports a call the merge layer must never receive, such
// as a save on a foreground context or for an account that is not stored.
var ErrPrecondition = errors.New("merge precondition failed")

type foregroundKey struct{}

// ForegroundContext marks ctx as serving an interactive request. Such
// contexts may read stored data but never write it.
func ForegroundContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, foregroundKey{}, true)
}

func IsForeground(ctx context.Context) bool {
	fg, _ := ctx.Value(foregroundKey{}).(bool)
	return fg
}

func checkBackground(ctx context.Context, op string) error {
	if IsForeground(ctx) {
		return errors.Wrapf(ErrPrecondition, "%s on a foreground context", op)
	}
	return nil
}
