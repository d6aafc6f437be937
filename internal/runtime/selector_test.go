package runtime

import (
	"encoding/json"
	"testing"
)

func TestSelectorUnmarshalAny(t *testing.T) {
	var s Selector
	if err := json.Unmarshal([]byte(`"any"`), &s); err != nil {
		t.Fatal(err)
	}
	if !s.Any {
		t.Error("expected Any=true")
	}
	if !s.Matches("whatever") {
		t.Error("expected any selector to match anything")
	}
}

func TestSelectorUnmarshalList(t *testing.T) {
	var s Selector
	if err := json.Unmarshal([]byte(`["host-a", "host-b"]`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Any {
		t.Error("expected Any=false")
	}
	if !s.Matches("host-a") || s.Matches("host-c") {
		t.Error("selector did not match expected ids")
	}
}

func TestSelectorMarshalRoundTrip(t *testing.T) {
	s := Selector{IDs: []string{"x", "y"}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var s2 Selector
	if err := json.Unmarshal(data, &s2); err != nil {
		t.Fatal(err)
	}
	if s2.Any || len(s2.IDs) != 2 {
		t.Errorf("round trip mismatch: %+v", s2)
	}
}

func TestSelectorMarshalAny(t *testing.T) {
	s := Selector{Any: true}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"any"` {
		t.Errorf("expected \"any\", got %s", data)
	}
}
