package module

import (
	_ "embed"
	"encoding/json"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pkg/errors"
)

// Capabilities describes which exports a module kind must provide.
type Capabilities struct {
	NeedsGetPath         bool
	NeedsDefaultOrRender bool
	NeedsDefault         bool
	NeedsHandler         bool
	NeedsRedirectExports bool
	ExclusiveStream      bool
}

var capabilities = map[Kind]Capabilities{
	KindTemplate: {NeedsGetPath: true, NeedsDefaultOrRender: true, ExclusiveStream: true},
	KindRedirect: {NeedsRedirectExports: true, ExclusiveStream: true},
	KindFunction: {NeedsHandler: true},
	KindModule:   {NeedsDefault: true},
}

func (k Kind) Capabilities() Capabilities {
	return capabilities[k]
}

// Validate enforces the structural contract of m's kind and returns the
// first violation found.
func Validate(m *Internal) error {
	caps := m.Kind.Capabilities()

	if m.Config.Name == "" {
		return newValidationError(m, `is missing a "name" in the config function.`)
	}

	if caps.ExclusiveStream && m.Config.StreamID != "" && m.Config.Stream != nil {
		return newValidationError(m, `must not define both a "streamId" and a "stream".`)
	}

	if caps.NeedsGetPath && m.GetPath == nil {
		return newValidationError(m, "is missing an exported getPath function.")
	}

	if caps.NeedsDefaultOrRender && m.Default == nil && m.Render == nil {
		return newValidationError(m, "is missing a default export or a render function.")
	}

	if caps.NeedsDefault && m.Default == nil {
		return newValidationError(m, "is missing a default export.")
	}

	if caps.NeedsHandler && m.Handler == nil {
		return newValidationError(m, "is missing a default export handler.")
	}

	if caps.NeedsRedirectExports {
		if m.GetDestination == nil {
			return newValidationError(m, "is missing an exported getDestination function.")
		}
		if m.GetSources == nil {
			return newValidationError(m, "is missing an exported getSources function.")
		}
	}

	if m.Config.Stream != nil {
		if err := validateStream(m.Config.Stream); err != nil {
			return newValidationError(m, "declares an invalid stream: %s", err)
		}
	}

	return nil
}

// ValidateAll stops at the first invalid module.
func ValidateAll(modules []*Internal) error {
	for _, m := range modules {
		if err := Validate(m); err != nil {
			return err
		}
	}
	return nil
}

//go:embed stream.cue
var streamSchemaSource string

// cue.Context is not safe for concurrent use; the dev server validates from
// request goroutines.
var streamSchema struct {
	once sync.Once
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	err  error
}

func validateStream(s *Stream) error {
	if s.Filter.Empty() {
		return errors.New("filter must set at least one of entityIds, entityTypes or savedFilterIds")
	}

	streamSchema.once.Do(func() {
		streamSchema.ctx = cuecontext.New()
		schema := streamSchema.ctx.CompileString(streamSchemaSource, cue.Filename("stream.cue"))
		if err := schema.Err(); err != nil {
			streamSchema.err = errors.Wrap(err, "compiling stream schema")
			return
		}
		streamSchema.def = schema.LookupPath(cue.ParsePath("#Stream"))
	})
	if streamSchema.err != nil {
		return streamSchema.err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return errors.WithStack(err)
	}

	streamSchema.mu.Lock()
	defer streamSchema.mu.Unlock()

	v := streamSchema.ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return err
	}
	if err := streamSchema.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		if s.Localization.Primary != nil && *s.Localization.Primary && len(s.Localization.Locales) > 0 {
			return errors.New("localization must specify either locales or primary, not both")
		}
		if len(s.Localization.Locales) == 0 && (s.Localization.Primary == nil || !*s.Localization.Primary) {
			return errors.New("localization must specify either locales or primary")
		}
		return err
	}
	return nil
}
