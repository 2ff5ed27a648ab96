package store

import (
	"errors"
	"testing"
)

type note struct {
	Id   string `json:"id" store:"id"`
	Text string `json:"text"`
}

func TestUpsertAndGet(t *testing.T) {
	s := New()
	coll := s.WithPartitionKey("p1").Collection("notes")

	if err := coll.UpsertOne(note{Id: "a", Text: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := coll.UpsertOne(&note{Id: "a", Text: "second"}); err != nil {
		t.Fatal(err)
	}

	var got note
	ok, err := coll.GetOne("a", &got)
	if err != nil || !ok {
		t.Fatalf("GetOne = %v, %v", ok, err)
	}
	if got.Text != "second" {
		t.Errorf("text = %q", got.Text)
	}
	if coll.Count() != 1 {
		t.Errorf("count = %d", coll.Count())
	}
}

func TestPartitionsAreIsolated(t *testing.T) {
	s := New()
	if err := s.WithPartitionKey("p1").Collection("notes").UpsertOne(note{Id: "a"}); err != nil {
		t.Fatal(err)
	}
	ok, err := s.WithPartitionKey("p2").Collection("notes").GetOne("a", &note{})
	if err != nil || ok {
		t.Errorf("other partition sees document: %v, %v", ok, err)
	}
}

func TestUpsertRequiresID(t *testing.T) {
	coll := New().WithPartitionKey("p").Collection("c")
	if err := coll.UpsertOne(struct{ Name string }{"x"}); !errors.Is(err, ErrNoID) {
		t.Errorf("err = %v, want ErrNoID", err)
	}
	if err := coll.UpsertOne(note{}); err == nil {
		t.Error("expected error for empty id")
	}
	if err := coll.UpsertOne("text"); !errors.Is(err, ErrNoID) {
		t.Errorf("err = %v, want ErrNoID", err)
	}
}

func TestStoredValuesAreCopies(t *testing.T) {
	coll := New().WithPartitionKey("p").Collection("c")
	n := &note{Id: "a", Text: "orig"}
	if err := coll.UpsertOne(n); err != nil {
		t.Fatal(err)
	}
	n.Text = "changed"
	var got note
	if _, err := coll.GetOne("a", &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "orig" {
		t.Errorf("stored value changed to %q", got.Text)
	}
}
