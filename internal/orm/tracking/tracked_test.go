package tracking

import (
	"reflect"
	"testing"
)

type menu struct {
	Id    int64
	Name  string
	Path  string
	Sort  int
	Tags  []string
	Note  *string
	Flag
}

func TestTrackedStartsClean(t *testing.T) {
	tr, err := Track(&menu{Id: 1, Name: "Home"})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if tr.IsDirty() {
		t.Error("new wrapper should be clean")
	}
	if got := tr.ChangedFields(); len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}

func TestTrackedSet(t *testing.T) {
	tr, _ := Track(&menu{Id: 1, Name: "Home", Path: "/"})

	tr.Set(func(m *menu) {
		m.Path = "/home"
		m.Sort = 3
	})
	if !tr.IsDirty() {
		t.Fatal("Set should mark dirty")
	}
	want := []string{"Path", "Sort"}
	if got := tr.ChangedFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedFields() = %v, want %v", got, want)
	}

	tr.MarkClean()
	if tr.IsDirty() || len(tr.ChangedFields()) != 0 {
		t.Error("MarkClean should reset the snapshot")
	}
}

func TestTrackedSetRevert(t *testing.T) {
	tr, _ := Track(&menu{Name: "Home"})
	tr.Set(func(m *menu) { m.Name = "Other" })
	tr.Set(func(m *menu) { m.Name = "Home" })

	if !tr.IsDirty() {
		t.Error("wrapper stays dirty after a reverting Set")
	}
	if got := tr.ChangedFields(); len(got) != 0 {
		t.Errorf("reverted field reported as changed: %v", got)
	}
}

func TestTrackedSetField(t *testing.T) {
	m := &menu{Id: 7}
	tr, _ := Track(m)

	if err := tr.SetField("sort", "12"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if m.Sort != 12 {
		t.Errorf("Sort = %d, want 12", m.Sort)
	}
	if err := tr.SetField("Note", "memo"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if m.Note == nil || *m.Note != "memo" {
		t.Errorf("Note not set: %v", m.Note)
	}
	if got := tr.ChangedFields(); !reflect.DeepEqual(got, []string{"Sort", "Note"}) {
		t.Errorf("ChangedFields() = %v", got)
	}

	if err := tr.SetField("Missing", 1); err == nil {
		t.Error("expected error for unknown field")
	}
	if err := tr.SetField("Sort", "many"); err == nil {
		t.Error("expected conversion error")
	}
}

func TestTrackedSliceMutation(t *testing.T) {
	m := &menu{Tags: []string{"a"}}
	tr, _ := Track(m)

	m.Tags[0] = "b"
	if got := tr.ChangedFields(); !reflect.DeepEqual(got, []string{"Tags"}) {
		t.Errorf("in-place slice edit not detected: %v", got)
	}
	if tr.IsDirty() {
		t.Error("direct edits do not set the dirty flag")
	}
}

func TestTrackNil(t *testing.T) {
	if _, err := Track[menu](nil); err == nil {
		t.Error("expected error for nil entity")
	}
}

func TestFlag(t *testing.T) {
	var m menu
	var tr Trackable = &m
	if tr.IsDirty() {
		t.Error("zero Flag should be clean")
	}
	m.MarkDirty()
	if !tr.IsDirty() {
		t.Error("MarkDirty had no effect")
	}
	m.MarkClean()
	if tr.IsDirty() {
		t.Error("MarkClean had no effect")
	}
}

func TestChangeTracker(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"a": 1, "b": "x"}, map[string]any{"a": 2, "b": "x"})
	if !ct.Changed("a") || ct.Changed("b") {
		t.Fatalf("unexpected changes: %v", ct.ChangedFields())
	}
	c := ct.Change("a")
	if c == nil || c.OldValue != 1 || c.NewValue != 2 {
		t.Errorf("Change(a) = %+v", c)
	}

	ct.SetFieldValue("a", 1)
	if ct.HasChanges() {
		t.Error("setting the original value back should clear the change")
	}

	ct.SetFieldValue("c", true)
	if !reflect.DeepEqual(ct.ChangedFields(), []string{"c"}) {
		t.Errorf("ChangedFields() = %v", ct.ChangedFields())
	}
	ct.Reset()
	if ct.HasChanges() {
		t.Error("Reset should clear changes")
	}
}
