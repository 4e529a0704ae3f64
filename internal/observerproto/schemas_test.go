package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("validate: expected rejection")
		}
	}

	subscribeSchema := compile("subscribe.schema.json")
	tickSchema := compile("tick.schema.json")
	bootstrapSchema := compile("bootstrap.schema.json")

	var subscribe any
	_ = json.Unmarshal([]byte(`{
	  "type":"SUBSCRIBE",
	  "protocol_version":"0.2",
	  "every_ticks":5
	}`), &subscribe)
	validate(subscribeSchema, subscribe)

	var tick any
	_ = json.Unmarshal([]byte(`{
	  "type":"TICK",
	  "protocol_version":"0.2",
	  "tick":17,
	  "walkers":[
	    {"id":0,"name":"plain-1","kind":"plain","x":3.5,"y":-2.0,"mult":0.5},
	    {"id":1,"name":"memory-1","kind":"memory","x":0.0,"y":0.0,"mult":1}
	  ],
	  "digest":"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	}`), &tick)
	validate(tickSchema, tick)

	var bootstrap any
	_ = json.Unmarshal([]byte(`{
	  "type":"BOOTSTRAP",
	  "protocol_version":"0.2",
	  "scenario":"meadow",
	  "run_id":"2f0b6a52-9f3e-4c21-8c11-3a7d6ce1a111",
	  "tick":0,
	  "params":{"seed":42,"ticks":500,"tick_rate_hz":10,"interaction":"attract"},
	  "zones":[
	    {"kind":"water","min":[-8,-8],"max":[-4,-4]},
	    {"kind":"grass","min":[2,2],"max":[6,6]}
	  ],
	  "obstacles":[{"min":[1,-1],"max":[2,1]}],
	  "gates":[{"entrance":{"min":[-2,4],"max":[-1,5]},"exit":[0,-10]}],
	  "walkers":[{"id":0,"name":"plain-1","kind":"plain","x":0,"y":0,"mult":2}]
	}`), &bootstrap)
	reject(bootstrapSchema, bootstrap)

	delete(bootstrap.(map[string]any), "type")
	validate(bootstrapSchema, bootstrap)

	var badTick any
	_ = json.Unmarshal([]byte(`{
	  "type":"TICK",
	  "protocol_version":"0.2",
	  "tick":1,
	  "walkers":[{"id":0,"name":"plain-1","kind":"plain","x":0,"y":0,"mult":3}],
	  "digest":"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	}`), &badTick)
	reject(tickSchema, badTick)
}
