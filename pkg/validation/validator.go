package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

var (
	// ErrMessageType is returned when a message of another type is handed to
	// a Validator
	ErrMessageType = errors.New("message type mismatch")
	// ErrNilMessage is returned for nil messages
	ErrNilMessage = errors.New("nil message")
)

// Validator checks messages of one type, and every type reachable from it,
// against a RuleSet. It is immutable and safe for concurrent use.
type Validator struct {
	env  *env
	desc protoreflect.MessageDescriptor
	root *messageEvaluator
}

// New binds rules to md. Every consistency defect of the whole message tree
// is reported at once as ConsistencyErrors.
func New(md protoreflect.MessageDescriptor, rules *RuleSet, opts ...Option) (*Validator, error) {
	if md == nil {
		return nil, fmt.Errorf("new validator: %w", ErrNilMessage)
	}
	if rules == nil {
		rules = &RuleSet{}
	}
	e := newEnv(opts)
	e.files = []protoreflect.FileDescriptor{md.ParentFile()}

	b := newBinder(e, rules)
	root := b.message(md)
	b.finish()
	for _, ce := range b.errs {
		e.recorder.RecordConsistencyError(ce.Kind.String())
	}
	if err := b.errs.Err(); err != nil {
		e.logger.WithField("message", string(md.FullName())).
			WithField("errors", len(b.errs)).
			Warn("rules failed consistency check")
		return nil, err
	}
	return &Validator{env: e, desc: md, root: root}, nil
}

// Descriptor returns the message type the validator was built for
func (v *Validator) Descriptor() protoreflect.MessageDescriptor {
	return v.desc
}

// Validate checks msg. The returned error is reserved for misuse (wrong
// type, nil message) and internal failures; rule violations are data.
func (v *Validator) Validate(msg proto.Message) (vs violation.Violations, err error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	m := msg.ProtoReflect()
	if got := m.Descriptor().FullName(); got != v.desc.FullName() {
		return nil, fmt.Errorf("%w: validator for %s got %s", ErrMessageType, v.desc.FullName(), got)
	}
	defer observability.RecoverPanic(v.env.logger, "validate "+string(v.desc.FullName()), &err)

	start := time.Now()
	if !v.root.trivial {
		st := newState(v.env, nil)
		v.root.validate(st, m)
		vs = st.out
	}
	v.env.recorder.RecordValidation(string(v.desc.FullName()), vs.RuleIDs(), time.Since(start))
	return vs, nil
}

// ValidateAll validates msgs concurrently with at most the configured number
// of goroutines. Results are in input order. The first misuse error cancels
// the batch.
func (v *Validator) ValidateAll(ctx context.Context, msgs []proto.Message) (_ []violation.Violations, err error) {
	ctx, span := observability.StartSpan(ctx, "validation.ValidateAll",
		attribute.String("message", string(v.desc.FullName())),
		attribute.Int("count", len(msgs)))
	defer func() { observability.EndSpan(span, err) }()

	out := make([]violation.Violations, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.env.concurrency)
	for i, msg := range msgs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vs, err := v.Validate(msg)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			out[i] = vs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
