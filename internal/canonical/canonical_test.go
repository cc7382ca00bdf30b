package canonical

import (
	"testing"
)

type sample struct {
	Zebra string         `json:"zebra"`
	Alpha int            `json:"alpha"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(sample{Zebra: "z", Alpha: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"alpha":1,"zebra":"z"}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestMarshal_MapOrderIrrelevant(t *testing.T) {
	a, err := Marshal(map[string]any{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(map[string]any{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ: %s vs %s", a, b)
	}
}

func TestMarshal_PreservesNumberPrecision(t *testing.T) {
	got, err := Marshal(map[string]any{"big": int64(9007199254740993)})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"big":9007199254740993}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestMarshal_NestedStructures(t *testing.T) {
	a, err := Marshal(sample{Meta: map[string]any{"y": "1", "x": "2"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(sample{Meta: map[string]any{"x": "2", "y": "1"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ: %s vs %s", a, b)
	}
}
