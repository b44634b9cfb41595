package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/hpp2334/hol-runtime/application/resource"
	"github.com/hpp2334/hol-runtime/domain/entities"
)

// InvocationContext is the per-call capability object passed to handlers.
// It carries the invoked key, the resource table and a request-scoped value
// bag that middleware can use without growing the context chain.
type InvocationContext interface {
	context.Context

	// Key returns the command being invoked.
	Key() entities.CommandKey

	// Table returns the resource table shared by all commands.
	Table() *resource.Table

	// RequestID identifies this invocation in logs.
	RequestID() string

	// SetValue stores a request-scoped value.
	SetValue(key, value any)

	// GetValue retrieves a value stored with SetValue.
	GetValue(key any) (value any, ok bool)
}

type invocationContext struct {
	context.Context
	table     *resource.Table
	values    map[any]any
	key       entities.CommandKey
	requestID string
}

func newInvocationContext(ctx context.Context, key entities.CommandKey, table *resource.Table) *invocationContext {
	id, ok := RequestIDFrom(ctx)
	if !ok {
		id = uuid.NewString()
	}
	return &invocationContext{
		Context:   ctx,
		table:     table,
		values:    make(map[any]any),
		key:       key,
		requestID: id,
	}
}

func (c *invocationContext) Key() entities.CommandKey { return c.key }

func (c *invocationContext) Table() *resource.Table { return c.table }

func (c *invocationContext) RequestID() string { return c.requestID }

// Value resolves the request id for contexts that were not tagged with one
// before the invocation started.
func (c *invocationContext) Value(key any) any {
	if _, ok := key.(requestIDKey); ok {
		return c.requestID
	}
	return c.Context.Value(key)
}

func (c *invocationContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *invocationContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id attached with WithRequestID.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// FromContext returns the InvocationContext ctx belongs to, if any.
func FromContext(ctx context.Context) (InvocationContext, bool) {
	ic, ok := ctx.(InvocationContext)
	return ic, ok
}
