package command

import (
	"context"
	"errors"
)

// MultiWriter fans a write out to every Writer in order and joins their errors.
type MultiWriter []Writer

func (m MultiWriter) Set(ctx context.Context, key string, value any) error {
	var errs []error
	for _, w := range m {
		if err := w.Set(ctx, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
