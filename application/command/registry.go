package command

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/hpp2334/hol-runtime/application/resource"
	"github.com/hpp2334/hol-runtime/application/schema"
	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// Registry maps command keys to erased handlers.
type Registry struct {
	table      *resource.Table
	logger     *slog.Logger
	commands   map[entities.CommandKey]*registration
	middleware []Middleware
	mu         sync.RWMutex
}

type registration struct {
	handler     ByteHandler
	argType     reflect.Type
	resultType  reflect.Type
	description string
}

// Option configures a Registry.
type Option func(*registryBuilder)

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	reg    *Registry
	setups []func(*Registry) error
}

// WithTable sets the resource table handed to handlers.
// A fresh table is created when none is given.
func WithTable(t *resource.Table) Option {
	return func(b *registryBuilder) {
		b.reg.table = t
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *registryBuilder) {
		b.reg.logger = logger
	}
}

// WithMiddleware adds middleware applied to every command registered
// afterwards. Middleware executes in FIFO order.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *registryBuilder) {
		b.reg.middleware = append(b.reg.middleware, mw...)
	}
}

// WithSetup runs fn against the registry once all other options are
// applied. Preset command sets use it to register themselves.
func WithSetup(fn func(*Registry) error) Option {
	return func(b *registryBuilder) {
		b.setups = append(b.setups, fn)
	}
}

// NewRegistry creates a registry. It returns the first error reported by a
// setup function, such as a duplicate registration.
//
//	reg, err := command.NewRegistry(
//	    command.WithMiddleware(command.LoggingMiddleware(logger)),
//	    command.WithSetup(archive.Setup),
//	)
func NewRegistry(opts ...Option) (*Registry, error) {
	b := &registryBuilder{
		reg: &Registry{
			commands: make(map[entities.CommandKey]*registration),
			logger:   slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.reg.table == nil {
		b.reg.table = resource.NewTable(resource.WithLogger(b.reg.logger))
	}

	for _, setup := range b.setups {
		if err := setup(b.reg); err != nil {
			return nil, err
		}
	}
	return b.reg, nil
}

// RegisterOption configures a single registration.
type RegisterOption func(*registration)

// Describe attaches a human-readable description shown in the manifest.
func Describe(text string) RegisterOption {
	return func(r *registration) {
		r.description = text
	}
}

func withTypes(arg, result reflect.Type) RegisterOption {
	return func(r *registration) {
		r.argType = arg
		r.resultType = result
	}
}

// Handle registers an erased handler under (pkg, cmd).
// Registering an existing key fails with *errors.DuplicateCommandError.
func (r *Registry) Handle(pkg, cmd string, h ByteHandler, opts ...RegisterOption) error {
	if pkg == "" {
		return &errors.MissingFieldError{Field: "pkg_id"}
	}
	if cmd == "" {
		return &errors.MissingFieldError{Field: "cmd_id"}
	}
	if h == nil {
		return fmt.Errorf("command %s/%s: nil handler", pkg, cmd)
	}
	key := entities.NewCommandKey(pkg, cmd)

	reg := &registration{}
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[key]; exists {
		return &errors.DuplicateCommandError{Key: key}
	}

	chain := append([]Middleware{RecoveryMiddleware()}, r.middleware...)
	wrapped := h
	// Apply in reverse so the first middleware wraps outermost.
	for i := len(chain) - 1; i >= 0; i-- {
		wrapped = chain[i](wrapped)
	}
	reg.handler = wrapped
	r.commands[key] = reg

	r.logger.Debug("command registered", "command", key.String())
	return nil
}

// Register erases a typed handler with NewHandler and registers it.
func Register[A any, PA interface {
	*A
	wireformat.Unmarshaler
}, R wireformat.Marshaler](r *Registry, pkg, cmd string, fn Handler[PA, R], opts ...RegisterOption) error {
	opts = append([]RegisterOption{withTypes(reflect.TypeFor[A](), reflect.TypeFor[R]())}, opts...)
	return r.Handle(pkg, cmd, NewHandler[A, PA, R](fn), opts...)
}

// MustRegister is like Register but panics on error.
func MustRegister[A any, PA interface {
	*A
	wireformat.Unmarshaler
}, R wireformat.Marshaler](r *Registry, pkg, cmd string, fn Handler[PA, R], opts ...RegisterOption) {
	if err := Register[A, PA, R](r, pkg, cmd, fn, opts...); err != nil {
		panic(err)
	}
}

// Invoke runs the command addressed by req and wraps the outcome in a
// response envelope. Every failure, including a missing key, becomes a
// failed response; Invoke itself never returns an error.
func (r *Registry) Invoke(ctx context.Context, req entities.InvocationRequest) entities.InvocationResponse {
	if req.PackageID == "" {
		return r.fail(ctx, &errors.MissingFieldError{Field: "pkg_id"})
	}
	if req.CommandID == "" {
		return r.fail(ctx, &errors.MissingFieldError{Field: "cmd_id"})
	}

	key := req.Key()
	r.mu.RLock()
	reg, ok := r.commands[key]
	r.mu.RUnlock()
	if !ok {
		return r.fail(ctx, &errors.CommandNotFoundError{Key: key})
	}

	ic := newInvocationContext(ctx, key, r.table)
	out, err := reg.handler(ic, req.Arguments)
	if err != nil {
		return entities.InvocationFailure(err.Error())
	}
	return entities.InvocationSuccess(out)
}

func (r *Registry) fail(ctx context.Context, err error) entities.InvocationResponse {
	r.logger.DebugContext(ctx, "invocation rejected", "error", err)
	return entities.InvocationFailure(err.Error())
}

// Table returns the resource table handed to handlers.
func (r *Registry) Table() *resource.Table {
	return r.table
}

// Has reports whether key is registered.
func (r *Registry) Has(key entities.CommandKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[key]
	return ok
}

// Keys returns every registered key ordered by package, then command.
func (r *Registry) Keys() []entities.CommandKey {
	r.mu.RLock()
	keys := make([]entities.CommandKey, 0, len(r.commands))
	for k := range r.commands {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Manifest describes every registered command. Commands registered through
// Register carry JSON Schemas of their argument and result types.
func (r *Registry) Manifest() ([]entities.CommandManifest, error) {
	keys := r.Keys()
	out := make([]entities.CommandManifest, 0, len(keys))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range keys {
		reg, ok := r.commands[key]
		if !ok {
			continue
		}
		m := entities.CommandManifest{
			PackageID:   key.PackageID,
			CommandID:   key.CommandID,
			Description: reg.description,
		}
		var err error
		if m.ArgSchema, err = typeSchema(reg.argType); err != nil {
			return nil, fmt.Errorf("argument schema of %s: %w", key, err)
		}
		if m.ResultSchema, err = typeSchema(reg.resultType); err != nil {
			return nil, fmt.Errorf("result schema of %s: %w", key, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func typeSchema(t reflect.Type) ([]byte, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, nil
	}
	return schema.GenerateSchema(reflect.New(t).Interface())
}
