package qmatch

import "testing"

func TestMatchOptionsSetDefaults(t *testing.T) {
	var o MatchOptions
	o.SetDefaults()
	if o.MaxItems != 10 {
		t.Errorf("MaxItems = %d, want 10", o.MaxItems)
	}
	if o.CheckAtLeast != o.First+o.MaxItems {
		t.Errorf("CheckAtLeast = %d, want %d", o.CheckAtLeast, o.First+o.MaxItems)
	}
}

// TestNewMatchOptionsDefaultsToNoCollapse locks in that slot 0 is never
// silently reinterpreted as NoCollapse: the zero-value MatchOptions{}
// means "collapse on slot 0", and only the constructor (or an explicit
// CollapseKey: NoCollapse) means "no collapsing".
func TestNewMatchOptionsDefaultsToNoCollapse(t *testing.T) {
	o := NewMatchOptions()
	if o.CollapseKey != NoCollapse {
		t.Errorf("NewMatchOptions().CollapseKey = %d, want NoCollapse", o.CollapseKey)
	}

	var zero MatchOptions
	zero.SetDefaults()
	if zero.CollapseKey != 0 {
		t.Errorf("zero-value MatchOptions.CollapseKey after SetDefaults = %d, want 0 (slot 0, not silently rewritten)", zero.CollapseKey)
	}
}

func TestMatchOptionsSetDefaultsPreservesExplicitValues(t *testing.T) {
	o := MatchOptions{MaxItems: 25, First: 10, CheckAtLeast: 100}
	o.SetDefaults()
	if o.MaxItems != 25 {
		t.Errorf("MaxItems = %d, want 25", o.MaxItems)
	}
	if o.CheckAtLeast != 100 {
		t.Errorf("CheckAtLeast = %d, want 100 (already above First+MaxItems)", o.CheckAtLeast)
	}
}

func TestMatchOptionsSetDefaultsRaisesCheckAtLeast(t *testing.T) {
	o := MatchOptions{MaxItems: 20, First: 5, CheckAtLeast: 3}
	o.SetDefaults()
	if want := 25; o.CheckAtLeast != want {
		t.Errorf("CheckAtLeast = %d, want %d", o.CheckAtLeast, want)
	}
}
