package plan

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// Options control pipeline construction.
type Options struct {
	Name     string      // Pipeline label; defaults to the document name
	Logger   *zap.Logger // Defaults to a no-op logger
	Registry *Registry   // Defaults to Default()

	// Defaults fill arguments an op declares but the plan leaves unset,
	// e.g. batch_size from the engine config.
	Defaults map[string]interface{}
}

// withDefaults returns args plus every default the op declares and args
// lacks. args itself is not modified.
func withDefaults(op Op, args, defaults map[string]interface{}) map[string]interface{} {
	var out map[string]interface{}
	for _, a := range op.Args {
		v, ok := defaults[a.Name]
		if !ok {
			continue
		}
		if _, set := args[a.Name]; set {
			continue
		}
		if out == nil {
			out = make(map[string]interface{}, len(args)+1)
			for k, x := range args {
				out[k] = x
			}
		}
		out[a.Name] = v
	}
	if out == nil {
		return args
	}
	return out
}

// Build constructs a pipeline from doc. On any error every component built
// so far is closed and no pipeline is returned.
func Build(doc *Document, opts Options) (*pipeline.Pipeline, error) {
	if doc == nil || len(doc.Steps) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "plan has no steps")
	}
	reg := opts.Registry
	if reg == nil {
		reg = Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		built   []Component
		decoder pipeline.Decoder
		encoder pipeline.Encoder
		stages  []pipeline.Stage
	)
	fail := func(err error) (*pipeline.Pipeline, error) {
		for _, c := range built {
			c.Close()
		}
		return nil, err
	}

	for i, e := range doc.Steps {
		if e.Op == "" {
			return fail(errors.Newf(errors.ErrorTypeConfig, "step %d has no op", i))
		}
		args := e.Args
		if op, ok := reg.Lookup(e.Op); ok && len(opts.Defaults) > 0 {
			args = withDefaults(op, args, opts.Defaults)
		}
		c, op, err := reg.Create(e.Op, args)
		if err != nil {
			return fail(err)
		}
		built = append(built, c)

		switch op.Kind {
		case KindDecoder:
			d, ok := c.(pipeline.Decoder)
			if !ok {
				return fail(errors.Newf(errors.ErrorTypeInternal, "op %s is not a decoder", op.Name))
			}
			if decoder != nil {
				return fail(errors.Newf(errors.ErrorTypeConfig, "plan has more than one decoder (%s)", op.Name))
			}
			decoder = d
		case KindEncoder:
			enc, ok := c.(pipeline.Encoder)
			if !ok {
				return fail(errors.Newf(errors.ErrorTypeInternal, "op %s is not an encoder", op.Name))
			}
			if encoder != nil {
				return fail(errors.Newf(errors.ErrorTypeConfig, "plan has more than one encoder (%s)", op.Name))
			}
			encoder = enc
		default:
			s, ok := c.(pipeline.Step)
			if !ok {
				return fail(errors.Newf(errors.ErrorTypeInternal, "op %s is not a step", op.Name))
			}
			stages = append(stages, pipeline.Stage{Op: op.Name, Step: s})
		}
	}
	if decoder == nil {
		return fail(errors.New(errors.ErrorTypeConfig, "plan has no decoder"))
	}
	if encoder == nil {
		return fail(errors.New(errors.ErrorTypeConfig, "plan has no encoder"))
	}

	name := opts.Name
	if name == "" {
		name = doc.Name
	}
	log.Debug("pipeline built", zap.String("pipeline", name), zap.Int("steps", len(stages)))
	return pipeline.New(&pipeline.Config{Name: name, Logger: log}, decoder, encoder, stages...), nil
}
