package model

import "testing"

func TestNewMapsInitialized(t *testing.T) {
	m := NewMaps()
	if m.ParentMap == nil || m.ChildrenMap == nil || m.PathMap == nil {
		t.Fatal("NewMaps returned a map with a nil field")
	}
	if len(m.ParentMap) != 0 {
		t.Errorf("ParentMap = %v, want empty", m.ParentMap)
	}
}

func TestMapsHasChildren(t *testing.T) {
	m := NewMaps()
	if m.HasChildren("http://a/") {
		t.Error("HasChildren on empty children map should be false")
	}
	m.ChildrenMap["http://a/"] = []string{"http://a/x"}
	if !m.HasChildren("http://a/") {
		t.Error("HasChildren should be true once a child is recorded")
	}
	m.ChildrenMap["http://a/y"] = nil
	if m.HasChildren("http://a/y") {
		t.Error("HasChildren should be false for an explicitly empty slice")
	}
}
