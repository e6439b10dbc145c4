package field

import (
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		ft      Type
		opts    []Option
		wantErr string
	}{
		{"valid text", "title", Text, nil, ""},
		{"empty name", "", Text, nil, "name is required"},
		{"reserved id", "id", Text, nil, "reserved"},
		{"reserved createdAt", "createdAt", Date, nil, "reserved"},
		{"reserved updatedAt", "updatedAt", Date, nil, "reserved"},
		{"unknown type", "x", Type("richtext"), nil, "invalid field type"},
		{"select without options", "status", Select, nil, "requires options"},
		{"select with options", "status", Select, []Option{Options("a", "b")}, ""},
		{"relationship without target", "parent", Relationship, nil, "requires a target"},
		{"relationship with target", "parent", Relationship, []Option{RelationTo("pages")}, ""},
		{"group without children", "meta", Group, nil, "requires child fields"},
		{"array without children", "items", Array, nil, "requires child fields"},
		{"blocks without variants", "layout", Blocks, nil, "requires block variants"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.field, tt.ft, tt.opts...)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_DuplicateBlockSlugs(t *testing.T) {
	child := MustNew("heading", Text)
	b1, err := NewBlock("hero", []Field{child})
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	b2, err := NewBlock("hero", []Field{child})
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if _, err := New("layout", Blocks, WithBlocks(b1, b2)); err == nil {
		t.Error("expected duplicate block error")
	}
}

func TestNewBlock_RequiresSlug(t *testing.T) {
	if _, err := NewBlock("", nil); err == nil {
		t.Error("expected error for empty block slug")
	}
}

func TestOptionsApply(t *testing.T) {
	f, err := New("status", Select,
		Required(), Default("draft"), Hidden(), Options("draft", "published"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsRequired() || !f.IsHidden() {
		t.Error("expected required and hidden")
	}
	def, has := f.DefaultValue()
	if !has || def != "draft" {
		t.Errorf("expected default 'draft', got %v (%v)", def, has)
	}
	if opts := f.SelectOptions(); len(opts) != 2 {
		t.Errorf("expected 2 options, got %v", opts)
	}
}

func TestDefaultValue_Absent(t *testing.T) {
	f := MustNew("title", Text)
	if _, has := f.DefaultValue(); has {
		t.Error("expected no default")
	}
}

func TestBlockLookup(t *testing.T) {
	hero, err := NewBlock("hero", []Field{MustNew("heading", Text)})
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	quote, err := NewBlock("quote", []Field{MustNew("text", Text)})
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	f, err := New("layout", Blocks, WithBlocks(hero, quote))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if slugs := f.BlockSlugs(); len(slugs) != 2 || slugs[0] != "hero" || slugs[1] != "quote" {
		t.Errorf("expected declaration order, got %v", slugs)
	}
	if b, ok := f.BlockBySlug("quote"); !ok || b.Slug() != "quote" {
		t.Error("expected quote block found")
	}
	if _, ok := f.BlockBySlug("sidebar"); ok {
		t.Error("expected sidebar missing")
	}
}
