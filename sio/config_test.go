package sio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/util/logging"
)

func TestYAMLConfig(t *testing.T) {
	c, err := ParseYAMLConfig([]byte(`
id: porch
period: 50ms
limit: 20
storage: /tmp/gait.db
boot: [lights.yaml]
log: {level: debug}
stdio: {tags: true}
tcp: {addr: ":8123", maxConns: 4}
routes:
  - pattern: {sensor: "?id", temp: "?t", tags: ["?tag"]}
    event: reading
    args: ["?id", "?t"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := c.TickPeriod(); d != 50*time.Millisecond {
		t.Fatal(d)
	}
	if c.Limit != 20 || c.QueueMax != 1<<20 || c.Library != DefaultLibrary {
		t.Fatal(JS(c))
	}
	if !c.Stdio.Tags || c.TCP.MaxConns != 4 || c.Log.Level != "debug" {
		t.Fatal(JS(c))
	}
	if len(c.Routes) != 1 {
		t.Fatal(JS(c.Routes))
	}
	if _, is := c.Routes[0].Pattern.(map[string]interface{}); !is {
		t.Fatalf("%T", c.Routes[0].Pattern)
	}

	e := NewEngine(core.NewManualClock(50*time.Millisecond), logging.Discard())
	c.Apply(e)
	if e.Sched.Control.Limit != 20 || e.Crew.Id != "porch" || len(e.Routes) != 1 {
		t.Fatal("not applied")
	}
	ls, err := e.Routes[0].Emissions(map[string]interface{}{
		"sensor": "a",
		"temp":   3.0,
		"tags":   []interface{}{"x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 1 || ls[0].Name != "reading" {
		t.Fatal(ls)
	}
}

func TestYAMLConfigErrors(t *testing.T) {
	for _, src := range []string{
		`period: soon`,
		`nope: 1`,
		`queueInitial: 10
queueMax: 5`,
		`routes: [{pattern: 1}]`,
	} {
		if _, err := ParseYAMLConfig([]byte(src)); err == nil {
			t.Fatalf("no error for %q", src)
		}
	}
}

func TestCUEConfig(t *testing.T) {
	c, err := ParseCUEConfig([]byte(`
id:     "kitchen"
period: "20ms"
websocket: addr: "localhost:0"
mqtt: {
	broker: "tcp://localhost:1883"
	sub:    "gait/in:1"
	pub:    "gait/out"
}
routes: [{
	pattern: {door: "?state"}
	event: "door"
	args: ["?state"]
}]
`), "test.cue")
	if err != nil {
		t.Fatal(err)
	}
	if c.Id != "kitchen" || c.Period != "20ms" || c.Limit != 100 {
		t.Fatal(JS(c))
	}
	if c.WebSocket.Addr != "localhost:0" || c.MQTT.Sub != "gait/in:1" {
		t.Fatal(JS(c))
	}
	if len(c.Routes) != 1 || c.Routes[0].Event != "door" {
		t.Fatal(JS(c.Routes))
	}
}

func TestCUEConfigSchema(t *testing.T) {
	for _, src := range []string{
		`unknown: 1`,
		`limit: -1`,
		`log: level: "chatty"`,
		`tcp: maxConns: 2`,
	} {
		if _, err := ParseCUEConfig([]byte(src), "bad.cue"); err == nil {
			t.Fatalf("no error for %q", src)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	y := filepath.Join(dir, "gait.yaml")
	if err := os.WriteFile(y, []byte("period: 1s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(y)
	if err != nil {
		t.Fatal(err)
	}
	if c.Period != "1s" {
		t.Fatal(c.Period)
	}

	cu := filepath.Join(dir, "gait.cue")
	if err := os.WriteFile(cu, []byte(`period: "2s"`), 0644); err != nil {
		t.Fatal(err)
	}
	if c, err = LoadConfig(cu); err != nil {
		t.Fatal(err)
	}
	if c.Period != "2s" {
		t.Fatal(c.Period)
	}

	if _, err = LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}
