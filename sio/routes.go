package sio

import (
	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/match"
)

// Route turns incoming data that isn't a request into an event.
//
// The data is matched against Pattern.  For each set of bindings,
// the event named Event is emitted with the values bound to Args
// (variables like "?temp").
//
//	pattern: {"sensor": "?id", "temp": "?t"}
//	event: reading
//	args: ["?id", "?t"]
type Route struct {
	Pattern interface{} `yaml:"pattern" json:"pattern"`
	Event   string      `yaml:"event" json:"event"`
	Args    []string    `yaml:"args,omitempty" json:"args,omitempty"`

	// Duration is how long the event lasts, in milliseconds.
	// Zero means the event is transient.
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"`

	// Last stops routing when this route matches.
	Last bool `yaml:"last,omitempty" json:"last,omitempty"`
}

// Emissions returns the emit directives for the data.
func (r *Route) Emissions(data interface{}) ([]*core.Emit, error) {
	bss, err := match.Match(r.Pattern, data, match.NewBindings())
	if err != nil {
		return nil, err
	}
	acc := make([]*core.Emit, 0, len(bss))
	for _, bs := range bss {
		args := make([]core.Expr, len(r.Args))
		for i, name := range r.Args {
			args[i] = &core.Const{V: core.FromInterface(bs[name])}
		}
		l := &core.Emit{Name: r.Event, Args: args}
		if 0 < r.Duration {
			l.Duration = core.N(r.Duration)
		}
		acc = append(acc, l)
	}
	return acc, nil
}

func (e *Engine) route(c *crew.Connection, data interface{}) {
	routed := false
	for _, r := range e.Routes {
		ls, err := r.Emissions(data)
		if err != nil {
			c.Emit(&crew.Output{
				Kind:  crew.KindError,
				Error: err.Error(),
			})
			return
		}
		for _, l := range ls {
			e.Sched.Execute(c, core.Do(l))
		}
		if 0 < len(ls) {
			routed = true
			if r.Last {
				break
			}
		}
	}
	if !routed {
		e.Logger.Debug("unrouted", "conn", c.Id(), "data", JShort(data))
	}
}
