package registry

import "testing"

func TestAdd_Idempotent(t *testing.T) {
	r := New(nil)

	first := r.Add(-100123, "alpha-calls")
	second := r.Add(-100123, "alpha-calls")

	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if second.AddedAt != first.AddedAt {
		t.Error("re-adding should keep the original added-at stamp")
	}
}

func TestAdd_KeepsNameWhenOmitted(t *testing.T) {
	r := New(nil)
	r.Add(-100123, "alpha-calls")
	entry := r.Add(-100123, "")
	if entry.SourceName != "alpha-calls" {
		t.Errorf("name = %q, want %q", entry.SourceName, "alpha-calls")
	}
}

func TestRemove(t *testing.T) {
	r := New(nil)
	r.Add(-100123, "alpha-calls")

	if !r.Remove(-100123) {
		t.Error("Remove should report true for a member")
	}
	if r.Contains(-100123) {
		t.Error("removed channel still a member")
	}
	if r.Remove(-100123) {
		t.Error("Remove should report false for a non-member")
	}
}

func TestSeed(t *testing.T) {
	r := New(nil)
	r.Seed([]int64{-1, -2, -3})
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	for _, id := range []int64{-1, -2, -3} {
		if !r.Contains(id) {
			t.Errorf("seeded channel %d missing", id)
		}
	}
}

func TestReplace_PreservesExistingEntries(t *testing.T) {
	r := New(nil)
	kept := r.Add(-1, "keep-me")
	r.Add(-2, "drop-me")

	r.Replace([]int64{-1, -3})

	if r.Contains(-2) {
		t.Error("replaced-out channel still a member")
	}
	if !r.Contains(-3) {
		t.Error("new channel missing after Replace")
	}

	for _, e := range r.List() {
		if e.SourceID == -1 {
			if e.SourceName != "keep-me" {
				t.Errorf("retained channel lost its name: %q", e.SourceName)
			}
			if e.AddedAt != kept.AddedAt {
				t.Error("retained channel lost its added-at stamp")
			}
		}
	}
}

func TestContains_Empty(t *testing.T) {
	r := New(nil)
	if r.Contains(-100123) {
		t.Error("empty registry should contain nothing")
	}
}
