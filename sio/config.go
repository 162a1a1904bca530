package sio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v2"

	"github.com/Comcast/gait/util/logging"
)

// Config is what gaitd needs to start an engine and its couplings.
type Config struct {
	Id string `yaml:"id,omitempty" json:"id,omitempty"`

	// Period is the tick period (like "100ms").
	Period string `yaml:"period,omitempty" json:"period,omitempty"`

	// Limit bounds nested morphs along one path in one tick.
	Limit int `yaml:"limit,omitempty" json:"limit,omitempty"`

	QueueInitial int `yaml:"queueInitial,omitempty" json:"queueInitial,omitempty"`
	QueueMax     int `yaml:"queueMax,omitempty" json:"queueMax,omitempty"`

	// Storage is a bolt database filename.  Empty means programs
	// are only kept in memory.
	Storage string `yaml:"storage,omitempty" json:"storage,omitempty"`
	Library string `yaml:"library,omitempty" json:"library,omitempty"`

	// Boot lists program files appended at start-up.
	Boot []string `yaml:"boot,omitempty" json:"boot,omitempty"`

	Log logging.Options `yaml:"log,omitempty" json:"log,omitempty"`

	Stdio     *StdioConf `yaml:"stdio,omitempty" json:"stdio,omitempty"`
	TCP       *TCP       `yaml:"tcp,omitempty" json:"tcp,omitempty"`
	WebSocket *WebSocket `yaml:"websocket,omitempty" json:"websocket,omitempty"`
	MQTT      *MQTT      `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`

	Routes []*Route `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// StdioConf configures the stdio coupling.
type StdioConf struct {
	Timestamps  bool `yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
	Tags        bool `yaml:"tags,omitempty" json:"tags,omitempty"`
	EchoInput   bool `yaml:"echo,omitempty" json:"echo,omitempty"`
	ShellExpand bool `yaml:"shellExpand,omitempty" json:"shellExpand,omitempty"`

	// ExitOnEOF stops gaitd when stdin is exhausted and nothing
	// is left to run.
	ExitOnEOF bool `yaml:"exitOnEOF,omitempty" json:"exitOnEOF,omitempty"`
}

// ConfigSchema constrains CUE configurations.
const ConfigSchema = `
id?:           string
period?:       string
limit?:        int & >=0
queueInitial?: int & >0
queueMax?:     int & >0
storage?:      string
library?:      string
boot?: [...string]
log?: {
	level?:   "debug" | "info" | "warn" | "error"
	file?:    string
	journal?: bool
}
stdio?: {
	timestamps?:  bool
	tags?:        bool
	echo?:        bool
	shellExpand?: bool
	exitOnEOF?:   bool
}
tcp?: {
	addr:      string
	maxConns?: int & >=0
}
websocket?: {
	addr:  string
	path?: string
}
mqtt?: {
	broker:       string
	clientId?:    string
	username?:    string
	password?:    string
	keepAlive?:   int
	reconnect?:   bool
	sub?:         string
	pub?:         string
	injectTopic?: bool
	quiesce?:     int & >=0
}
routes?: [...{
	pattern:   _
	event:     string
	args?:     [...string]
	duration?: number
	last?:     bool
}]
`

// DefaultConfig is used for anything a configuration leaves out.
func DefaultConfig() *Config {
	return &Config{
		Id:           "gait",
		Period:       "100ms",
		Limit:        100,
		QueueInitial: 256,
		QueueMax:     1 << 20,
		Library:      DefaultLibrary,
		Stdio:        &StdioConf{},
	}
}

// LoadConfig reads a YAML or (when the filename ends in ".cue") CUE
// configuration on top of DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(filename) == ".cue" {
		return ParseCUEConfig(bs, filename)
	}
	return ParseYAMLConfig(bs)
}

func ParseYAMLConfig(bs []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(bs, c); err != nil {
		return nil, err
	}
	for _, r := range c.Routes {
		r.Pattern = stringKeys(r.Pattern)
	}
	return c, c.Validate()
}

// ParseCUEConfig checks the source against ConfigSchema and then
// decodes it.
func ParseCUEConfig(bs []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + ConfigSchema + "})")
	if err := schema.Err(); err != nil {
		return nil, err
	}
	value := ctx.CompileBytes(bs, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, err
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := value.Decode(c); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// TickPeriod parses Period.
func (c *Config) TickPeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.Period)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("bad period %q", c.Period)
	}
	return d, nil
}

// Validate checks what the decoders can't.
func (c *Config) Validate() error {
	if _, err := c.TickPeriod(); err != nil {
		return err
	}
	if c.QueueMax < c.QueueInitial {
		return fmt.Errorf("queueMax %d is less than queueInitial %d", c.QueueMax, c.QueueInitial)
	}
	for i, r := range c.Routes {
		if r.Event == "" {
			return fmt.Errorf("route %d has no event", i)
		}
	}
	return nil
}

// Apply sets the engine's parameters.
func (c *Config) Apply(e *Engine) {
	if 0 < c.Limit {
		e.Sched.Control.Limit = c.Limit
	}
	e.QueueInitial = c.QueueInitial
	e.QueueMax = c.QueueMax
	if c.Library != "" {
		e.Library = c.Library
	}
	e.Crew.Id = c.Id
	e.Routes = c.Routes
}

// stringKeys turns the map[interface{}]interface{} values that yaml
// produces into map[string]interface{}.
func stringKeys(x interface{}) interface{} {
	switch vv := x.(type) {
	case map[interface{}]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[fmt.Sprintf("%v", k)] = stringKeys(v)
		}
		return acc
	case map[string]interface{}:
		for k, v := range vv {
			vv[k] = stringKeys(v)
		}
		return vv
	case []interface{}:
		for i, v := range vv {
			vv[i] = stringKeys(v)
		}
		return vv
	}
	return x
}
