package pattern

import "github.com/dusk-indust/syntaxkit/internal/query"

// Limits bounds one construct's query runs. Zero fields mean "no limit".
type Limits struct {
	MatchLimit    uint   `yaml:"matchLimit,omitempty" toml:"match_limit,omitempty" json:"matchLimit,omitempty"`
	MaxStartDepth uint   `yaml:"maxStartDepth,omitempty" toml:"max_start_depth,omitempty" json:"maxStartDepth,omitempty"`
	TimeoutMicros uint64 `yaml:"timeoutMicros,omitempty" toml:"timeout_micros,omitempty" json:"timeoutMicros,omitempty"`
}

// Options converts l into run options.
func (l Limits) Options() query.Options {
	var opts query.Options
	if l.MatchLimit > 0 {
		v := l.MatchLimit
		opts.MatchLimit = &v
	}
	if l.MaxStartDepth > 0 {
		v := l.MaxStartDepth
		opts.MaxStartDepth = &v
	}
	opts.TimeoutMicros = l.TimeoutMicros
	return opts
}

// merge overlays the non-zero fields of o onto l.
func (l Limits) merge(o Limits) Limits {
	if o.MatchLimit > 0 {
		l.MatchLimit = o.MatchLimit
	}
	if o.MaxStartDepth > 0 {
		l.MaxStartDepth = o.MaxStartDepth
	}
	if o.TimeoutMicros > 0 {
		l.TimeoutMicros = o.TimeoutMicros
	}
	return l
}

var defaultLimits = map[string]Limits{
	KeyFunction:        {MatchLimit: 100, MaxStartDepth: 5, TimeoutMicros: 1000},
	KeyMethod:          {MatchLimit: 200, MaxStartDepth: 6, TimeoutMicros: 1000},
	KeyClass:           {MatchLimit: 50, MaxStartDepth: 3, TimeoutMicros: 1000},
	KeyInterface:       {MatchLimit: 50, MaxStartDepth: 3, TimeoutMicros: 1000},
	KeyStruct:          {MatchLimit: 50, MaxStartDepth: 3, TimeoutMicros: 1000},
	KeyNamespace:       {MatchLimit: 30, MaxStartDepth: 2, TimeoutMicros: 500},
	KeyImport:          {MatchLimit: 50, MaxStartDepth: 2, TimeoutMicros: 500},
	KeyComment:         {MatchLimit: 1000, MaxStartDepth: 10, TimeoutMicros: 1000},
	KeyStringStatement: {MatchLimit: 1000, MaxStartDepth: 10, TimeoutMicros: 1000},
	KeyError:           {MatchLimit: 1000, MaxStartDepth: 20, TimeoutMicros: 5000},
}

// DefaultLimits returns the built-in bounds for key.
func DefaultLimits(key string) Limits {
	return defaultLimits[key]
}
