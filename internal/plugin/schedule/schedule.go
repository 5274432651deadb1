// Package schedule provides the "schedule" capability provider for cron
// expression evaluation.
package schedule

import (
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// Name is the registry name of the provider.
const Name = "schedule"

// maxOccurrences bounds the next_n method.
const maxOccurrences = 100

// Provider evaluates cron expressions.
type Provider struct {
	plugin.State

	now      func() time.Time
	location *time.Location
}

// Option configures the provider.
type Option func(*Provider)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithLocation sets the zone occurrences are computed in. UTC by default.
func WithLocation(loc *time.Location) Option {
	return func(p *Provider) {
		p.location = loc
	}
}

// New creates a schedule provider.
func New(opts ...Option) *Provider {
	p := &Provider{now: time.Now, location: time.UTC}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return Name
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		Version:     "1.0.0",
		Description: "Cron expression evaluation",
		Author:      "SIGMOS",
		Methods:     []string{"next", "next_n", "valid", "due"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{}
}

// Initialize implements plugin.Plugin
func (p *Provider) Initialize() error {
	p.MarkInitialized()
	return nil
}

// Execute implements plugin.Plugin
//
//	next(expr, from?)         RFC3339 time of the next occurrence
//	next_n(expr, count, from?) list of upcoming occurrences
//	valid(expr)               whether expr parses
//	due(expr, since)          whether an occurrence fell in (since, now]
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(Name); err != nil {
		return nil, err
	}

	a := plugin.NewArgs(Name, method, args)

	switch method {
	case "valid":
		expr, err := a.String("expr", 0)
		if err != nil {
			return nil, err
		}
		_, err = cronexpr.Parse(expr)
		return err == nil, nil

	case "next":
		expr, err := p.parse(a, method)
		if err != nil {
			return nil, err
		}
		from, err := p.timeArg(a, method, "from", 1)
		if err != nil {
			return nil, err
		}
		return format(expr.Next(from)), nil

	case "next_n":
		expr, err := p.parse(a, method)
		if err != nil {
			return nil, err
		}
		count, err := a.OptionalInt("count", 1, 1)
		if err != nil {
			return nil, err
		}
		if count < 1 || count > maxOccurrences {
			return nil, plugin.InvalidArgument(Name, method, fmt.Sprintf("count must be between 1 and %d", maxOccurrences))
		}
		from, err := p.timeArg(a, method, "from", 2)
		if err != nil {
			return nil, err
		}
		times := expr.NextN(from, uint(count))
		out := make([]any, len(times))
		for i, t := range times {
			out[i] = format(t)
		}
		return out, nil

	case "due":
		expr, err := p.parse(a, method)
		if err != nil {
			return nil, err
		}
		sinceRaw, err := a.String("since", 1)
		if err != nil {
			return nil, err
		}
		since, err := time.Parse(time.RFC3339, sinceRaw)
		if err != nil {
			return nil, plugin.InvalidArgument(Name, method, fmt.Sprintf("since: %v", err))
		}
		next := expr.Next(since.In(p.location))
		return !next.IsZero() && !next.After(p.now().In(p.location)), nil
	}

	return nil, plugin.MethodNotFound(Name, method)
}

func (p *Provider) parse(a plugin.Args, method string) (*cronexpr.Expression, error) {
	raw, err := a.String("expr", 0)
	if err != nil {
		return nil, err
	}
	expr, err := cronexpr.Parse(raw)
	if err != nil {
		return nil, plugin.InvalidArgument(Name, method, fmt.Sprintf("invalid cron expression %q: %v", raw, err))
	}
	return expr, nil
}

func (p *Provider) timeArg(a plugin.Args, method, name string, index int) (time.Time, error) {
	raw, err := a.OptionalString(name, index, "")
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return p.now().In(p.location), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, plugin.InvalidArgument(Name, method, fmt.Sprintf("%s: %v", name, err))
	}
	return t.In(p.location), nil
}

// format renders an occurrence. Expressions with no future match yield nil.
func format(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
