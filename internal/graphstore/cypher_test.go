package graphstore

import "testing"

func TestBuildMergeNodeRejectsInvalidIdentifiers(t *testing.T) {
	b := NewCypherBuilder()
	if _, err := b.BuildMergeNode("Class; DROP", "id1", nil); err == nil {
		t.Fatal("expected error for invalid node kind")
	}

	b2 := NewCypherBuilder()
	if _, err := b2.BuildMergeNode(KindClass, "id1", map[string]any{"name; DROP": "x"}); err == nil {
		t.Fatal("expected error for invalid property key")
	}
}

func TestBuildMergeNodeParameterizesValues(t *testing.T) {
	b := NewCypherBuilder()
	query, err := b.BuildMergeNode(KindClass, "proj:path.py:Foo", map[string]any{"name": "Foo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "MERGE (n:Class {composite_id: $p0}) SET n.name = $p1"; query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if b.Params()["p0"] != "proj:path.py:Foo" || b.Params()["p1"] != "Foo" {
		t.Fatalf("unexpected params: %+v", b.Params())
	}
}

func TestGroupNodesByKind(t *testing.T) {
	nodes := []Node{
		{Kind: KindClass, ID: "a"},
		{Kind: KindFunction, ID: "b"},
		{Kind: KindClass, ID: "c"},
	}
	grouped := groupNodesByKind(nodes)
	if len(grouped[KindClass]) != 2 || len(grouped[KindFunction]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	chunks := chunk(items, 2)
	if len(chunks) != 3 || len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}
