package cel

import (
	"testing"
)

func TestFilterMatch(t *testing.T) {
	f, err := NewFilter(`name.startsWith("dem_") && !name.endsWith("_tmp")`)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]bool{
		"dem_2020":     true,
		"dem_2020_tmp": false,
		"landuse":      false,
	} {
		got, err := f.Match(name)
		if err != nil {
			t.Fatalf("Match(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("Match(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestFilterRegex(t *testing.T) {
	f, err := NewFilter(`name.matches("^sst_[0-9]{4}$")`)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.Match("sst_1999"); !ok {
		t.Error("expected sst_1999 to match")
	}
	if ok, _ := f.Match("sst_99"); ok {
		t.Error("expected sst_99 not to match")
	}
}

func TestFilterErrors(t *testing.T) {
	if _, err := NewFilter(""); err == nil {
		t.Error("expected error on empty expression")
	}
	if _, err := NewFilter("name.startsWith("); err == nil {
		t.Error("expected compile error")
	}
	if _, err := NewFilter("unknown == 1"); err == nil {
		t.Error("expected error on undeclared variable")
	}
	f, err := NewFilter("size(name)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Match("dem"); err == nil {
		t.Error("expected error on a non boolean expression")
	}
}
