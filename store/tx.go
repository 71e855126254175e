package store

import "context"

type txKey struct{}

// WithTransaction marks the context as carrying an open record transaction.
// Schema changes are rejected on such contexts.
func WithTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, true)
}

// InTransaction reports if the context carries an open record transaction.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}
