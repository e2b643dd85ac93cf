package plan

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/errors"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/logger"
)

// Kind says where an op sits in a pipeline.
type Kind int

const (
	KindDecoder Kind = iota
	KindStep
	KindEncoder
)

func (k Kind) String() string {
	switch k {
	case KindDecoder:
		return "decoder"
	case KindEncoder:
		return "encoder"
	}
	return "step"
}

// Arg documents one op argument.
type Arg struct {
	Name        string `json:"name"`
	Required    bool   `json:"required,omitempty"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Op is the metadata of a registered op.
type Op struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"-"`
	Description string `json:"description"`
	Args        []Arg  `json:"args,omitempty"`
}

// Component is anything a factory builds: a pipeline.Decoder, a
// pipeline.Step or a pipeline.Encoder.
type Component interface {
	Close()
}

// Factory builds a component from raw plan arguments.
type Factory func(args map[string]interface{}) (Component, error)

type entry struct {
	op      Op
	factory Factory
}

// Registry maps op names to factories.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]entry
	logger *zap.Logger
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:    make(map[string]entry),
		logger: logger.Get().With(zap.String("component", "op_registry")),
	}
}

// Default returns the registry holding every built-in op.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// Register adds an op. Registering a name twice is an error.
func (r *Registry) Register(op Op, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[op.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "op %s already registered", op.Name)
	}
	r.ops[op.Name] = entry{op: op, factory: factory}
	r.logger.Debug("op registered", zap.String("op", op.Name), zap.Stringer("kind", op.Kind))
	return nil
}

// MustRegister is Register for built-ins, which never collide.
func (r *Registry) MustRegister(op Op, factory Factory) {
	if err := r.Register(op, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the metadata of a registered op.
func (r *Registry) Lookup(name string) (Op, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ops[name]
	return e.op, ok
}

// Create builds a component for the named op after checking required
// arguments.
func (r *Registry) Create(name string, args map[string]interface{}) (Component, Op, error) {
	r.mu.RLock()
	e, ok := r.ops[name]
	r.mu.RUnlock()
	if !ok {
		return nil, Op{}, errors.Newf(errors.ErrorTypeConfig, "unknown op %q", name)
	}
	for _, a := range e.op.Args {
		if a.Required {
			if v, ok := args[a.Name]; !ok || v == nil {
				return nil, e.op, errors.Newf(errors.ErrorTypeValidation, "%s: missing required argument %q", name, a.Name)
			}
		}
	}
	c, err := e.factory(args)
	if err != nil {
		return nil, e.op, err
	}
	return c, e.op, nil
}

// Ops lists registered ops ordered by kind, then name.
func (r *Registry) Ops() []Op {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Op, 0, len(r.ops))
	for _, e := range r.ops {
		ops = append(ops, e.op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Kind != ops[j].Kind {
			return ops[i].Kind < ops[j].Kind
		}
		return ops[i].Name < ops[j].Name
	})
	return ops
}

// decodeArgs maps raw plan arguments onto a config struct through a JSON
// round trip, so JSON and YAML plans share the struct tags.
func decodeArgs(op string, args map[string]interface{}, dst interface{}) error {
	if len(args) == 0 {
		return nil
	}
	data, err := jsonpool.Marshal(args)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, op+": arguments are not serialisable")
	}
	if err := jsonpool.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, op+": malformed arguments")
	}
	return nil
}

// factory adapts a typed constructor into a Factory.
func factory[C any, T Component](op string, build func(C) (T, error)) Factory {
	return func(args map[string]interface{}) (Component, error) {
		var cfg C
		if err := decodeArgs(op, args, &cfg); err != nil {
			return nil, err
		}
		c, err := build(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// noArgs adapts a constructor that takes no configuration.
func noArgs[T Component](build func() (T, error)) func(struct{}) (T, error) {
	return func(struct{}) (T, error) { return build() }
}
