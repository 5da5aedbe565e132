package auth

import "testing"

func TestAllowAll(t *testing.T) {
	a := AllowAll{}

	id, ok := a.Authenticate("trader1")
	if !ok {
		t.Fatal("Authenticate(trader1) = false")
	}
	if id.UserName != "trader1" {
		t.Errorf("UserName = %q, want trader1", id.UserName)
	}

	if _, ok := a.Authenticate(""); ok {
		t.Error("Authenticate(\"\") = true, want false")
	}
}

func TestStaticUsers(t *testing.T) {
	a := NewStaticUsers("alice", "bob")

	if _, ok := a.Authenticate("alice"); !ok {
		t.Error("Authenticate(alice) = false")
	}
	if _, ok := a.Authenticate("mallory"); ok {
		t.Error("Authenticate(mallory) = true")
	}
	if _, ok := a.Authenticate(""); ok {
		t.Error("Authenticate(\"\") = true")
	}

	a.Add(Identity{UserName: "carol", DisplayName: "Carol"})
	id, ok := a.Authenticate("carol")
	if !ok {
		t.Fatal("Authenticate(carol) = false after Add")
	}
	if id.DisplayName != "Carol" {
		t.Errorf("DisplayName = %q, want Carol", id.DisplayName)
	}
}
