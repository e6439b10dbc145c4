// Package schema loads declarative collection definitions from YAML. Access
// rules are named presets resolved to predicates; code-registered plugins can
// still contribute hooks and extra fields for the loaded collections.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
)

// File is the root YAML document.
type File struct {
	Collections []CollectionDef `yaml:"collections"`
}

// CollectionDef is one declarative collection.
type CollectionDef struct {
	Slug         string     `yaml:"slug"`
	DBName       string     `yaml:"db_name"`
	Timestamps   bool       `yaml:"timestamps"`
	Versioned    bool       `yaml:"versioned"`
	Managed      bool       `yaml:"managed"`
	Access       AccessDef  `yaml:"access"`
	DefaultWhere string     `yaml:"default_where"` // owner:<field> scopes listings to the requester
	Fields       []FieldDef `yaml:"fields"`
	Indexes      []IndexDef `yaml:"indexes"`
}

// AccessDef names one predicate preset per operation.
type AccessDef struct {
	Create string `yaml:"create"`
	Read   string `yaml:"read"`
	Update string `yaml:"update"`
	Delete string `yaml:"delete"`
}

// FieldDef is one declarative field.
type FieldDef struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Required   bool           `yaml:"required"`
	Default    any            `yaml:"default"`
	Hidden     bool           `yaml:"hidden"`
	Options    []string       `yaml:"options"`
	RelationTo string         `yaml:"relation_to"`
	Fields     []FieldDef     `yaml:"fields"`
	Blocks     []BlockDef     `yaml:"blocks"`
	Access     FieldAccessDef `yaml:"access"`
}

// FieldAccessDef names one predicate preset per field operation.
type FieldAccessDef struct {
	Read   string `yaml:"read"`
	Create string `yaml:"create"`
	Update string `yaml:"update"`
}

// BlockDef is one block variant of a blocks field.
type BlockDef struct {
	Slug   string     `yaml:"slug"`
	Fields []FieldDef `yaml:"fields"`
}

// IndexDef is one declarative index.
type IndexDef struct {
	Fields []string `yaml:"fields"`
	Unique bool     `yaml:"unique"`
}

// Load reads collection definitions from a YAML file.
func Load(path string) ([]collection.Collection, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds collections from YAML bytes.
func Parse(data []byte) ([]collection.Collection, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	cols := make([]collection.Collection, 0, len(file.Collections))
	for _, def := range file.Collections {
		col, err := buildCollection(def)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", def.Slug, err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func buildCollection(def CollectionDef) (collection.Collection, error) {
	fields := make([]field.Field, 0, len(def.Fields))
	for _, fd := range def.Fields {
		f, err := buildField(fd)
		if err != nil {
			return collection.Collection{}, err
		}
		fields = append(fields, f)
	}

	opts := []collection.Option{collection.Fields(fields...)}
	if def.DBName != "" {
		opts = append(opts, collection.DBName(def.DBName))
	}
	if def.Timestamps {
		opts = append(opts, collection.Timestamps())
	}
	if def.Versioned {
		opts = append(opts, collection.Versioned())
	}
	if def.Managed {
		opts = append(opts, collection.Managed())
	}

	policy, err := buildPolicy(def.Access)
	if err != nil {
		return collection.Collection{}, err
	}
	opts = append(opts, collection.Access(policy))

	if def.DefaultWhere != "" {
		where, err := buildWhere(def.DefaultWhere)
		if err != nil {
			return collection.Collection{}, err
		}
		opts = append(opts, collection.DefaultWhere(where))
	}

	if len(def.Indexes) > 0 {
		indexes := make([]collection.Index, len(def.Indexes))
		for i, idx := range def.Indexes {
			indexes[i] = collection.Index{Fields: idx.Fields, Unique: idx.Unique}
		}
		opts = append(opts, collection.Indexes(indexes...))
	}

	return collection.New(def.Slug, opts...)
}

func buildField(def FieldDef) (field.Field, error) {
	ft := field.Type(def.Type)
	if !ft.IsValid() {
		return field.Field{}, fmt.Errorf("field %q: unknown type %q", def.Name, def.Type)
	}

	var opts []field.Option
	if def.Required {
		opts = append(opts, field.Required())
	}
	if def.Default != nil {
		opts = append(opts, field.Default(def.Default))
	}
	if def.Hidden {
		opts = append(opts, field.Hidden())
	}
	if len(def.Options) > 0 {
		opts = append(opts, field.Options(def.Options...))
	}
	if def.RelationTo != "" {
		opts = append(opts, field.RelationTo(def.RelationTo))
	}

	if len(def.Fields) > 0 {
		children := make([]field.Field, 0, len(def.Fields))
		for _, fd := range def.Fields {
			f, err := buildField(fd)
			if err != nil {
				return field.Field{}, err
			}
			children = append(children, f)
		}
		opts = append(opts, field.WithFields(children...))
	}

	if len(def.Blocks) > 0 {
		blocks := make([]field.Block, 0, len(def.Blocks))
		for _, bd := range def.Blocks {
			bfields := make([]field.Field, 0, len(bd.Fields))
			for _, fd := range bd.Fields {
				f, err := buildField(fd)
				if err != nil {
					return field.Field{}, err
				}
				bfields = append(bfields, f)
			}
			block, err := field.NewBlock(bd.Slug, bfields)
			if err != nil {
				return field.Field{}, fmt.Errorf("field %q: %w", def.Name, err)
			}
			blocks = append(blocks, block)
		}
		opts = append(opts, field.WithBlocks(blocks...))
	}

	if def.Access != (FieldAccessDef{}) {
		fp, err := buildFieldPolicy(def.Access)
		if err != nil {
			return field.Field{}, fmt.Errorf("field %q: %w", def.Name, err)
		}
		opts = append(opts, field.WithAccess(fp))
	}

	return field.New(def.Name, ft, opts...)
}

func buildPolicy(def AccessDef) (access.Policy, error) {
	var p access.Policy
	var err error
	if p.Create, err = resolvePredicate(def.Create); err != nil {
		return access.Policy{}, err
	}
	if p.Read, err = resolvePredicate(def.Read); err != nil {
		return access.Policy{}, err
	}
	if p.Update, err = resolvePredicate(def.Update); err != nil {
		return access.Policy{}, err
	}
	if p.Delete, err = resolvePredicate(def.Delete); err != nil {
		return access.Policy{}, err
	}
	return p, nil
}

func buildFieldPolicy(def FieldAccessDef) (access.FieldPolicy, error) {
	var p access.FieldPolicy
	var err error
	if p.Read, err = resolvePredicate(def.Read); err != nil {
		return access.FieldPolicy{}, err
	}
	if p.Create, err = resolvePredicate(def.Create); err != nil {
		return access.FieldPolicy{}, err
	}
	if p.Update, err = resolvePredicate(def.Update); err != nil {
		return access.FieldPolicy{}, err
	}
	return p, nil
}

// resolvePredicate maps a preset name to a predicate. An empty name keeps the
// operation's default behavior (nil predicate).
func resolvePredicate(name string) (access.Predicate, error) {
	switch {
	case name == "":
		return nil, nil
	case name == "anyone":
		return access.Anyone(), nil
	case name == "authenticated":
		return access.Authenticated(), nil
	case name == "admin":
		return access.Admin(), nil
	case name == "nobody":
		return access.Nobody(), nil
	case strings.HasPrefix(name, "role:"):
		role := strings.TrimPrefix(name, "role:")
		if role == "" {
			return nil, fmt.Errorf("access preset %q: role name is required", name)
		}
		return access.Role(role), nil
	case strings.HasPrefix(name, "owner:"):
		fieldName := strings.TrimPrefix(name, "owner:")
		if fieldName == "" {
			return nil, fmt.Errorf("access preset %q: owner field is required", name)
		}
		return access.Owner(fieldName), nil
	default:
		return nil, fmt.Errorf("unknown access preset %q", name)
	}
}

// buildWhere maps a default_where preset to a scope function.
func buildWhere(name string) (access.Where, error) {
	if !strings.HasPrefix(name, "owner:") {
		return nil, fmt.Errorf("unknown default_where preset %q", name)
	}
	fieldName := strings.TrimPrefix(name, "owner:")
	if fieldName == "" {
		return nil, fmt.Errorf("default_where preset %q: owner field is required", name)
	}
	return access.OwnerWhere(fieldName), nil
}
