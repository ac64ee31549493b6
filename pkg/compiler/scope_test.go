package compiler

import "testing"

func TestScope_RootBindings(t *testing.T) {
	s := NewScope()
	s.Bind("actor", Binding{SQLName: "auth_user_id", Type: TypeUUID})

	b, ok := s.Lookup("actor")
	if !ok {
		t.Fatal("expected actor to resolve")
	}
	if b.SQLName != "auth_user_id" {
		t.Errorf("expected auth_user_id, got %s", b.SQLName)
	}

	if _, ok := s.Lookup("missing"); ok {
		t.Error("expected missing name to not resolve")
	}
}

func TestScope_ChildFrameVisibility(t *testing.T) {
	s := NewScope()
	s.Bind("outer", Binding{SQLName: "v_outer", Type: TypeText})

	s.Push()
	s.Bind("inner", Binding{SQLName: "v_inner", Type: TypeJSON})

	if _, ok := s.Lookup("outer"); !ok {
		t.Error("child frame should see parent bindings")
	}
	if _, ok := s.Lookup("inner"); !ok {
		t.Error("child frame should see its own bindings")
	}

	s.Pop()
	if _, ok := s.Lookup("inner"); ok {
		t.Error("inner binding must not survive the frame")
	}
	if _, ok := s.Lookup("outer"); !ok {
		t.Error("outer binding must survive the frame")
	}
}

func TestScope_Shadowing(t *testing.T) {
	s := NewScope()
	s.Bind("item", Binding{SQLName: "v_item", Type: TypeText})

	s.Push()
	s.Bind("item", Binding{SQLName: "v_item2", Type: TypeJSON})

	b, _ := s.Lookup("item")
	if b.SQLName != "v_item2" {
		t.Errorf("innermost binding should win, got %s", b.SQLName)
	}

	s.Pop()
	b, _ = s.Lookup("item")
	if b.SQLName != "v_item" {
		t.Errorf("outer binding should be restored, got %s", b.SQLName)
	}
}

func TestScope_RootNeverPops(t *testing.T) {
	s := NewScope()
	s.Bind("keep", Binding{SQLName: "v_keep"})

	s.Pop()
	s.Pop()

	if _, ok := s.Lookup("keep"); !ok {
		t.Error("root frame bindings must survive excess pops")
	}
	if s.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", s.Depth())
	}
}
