package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// applyDefaults fills absent fields with their declared defaults. Create only.
func applyDefaults(col collection.Collection, data document.Document) {
	for _, f := range col.Fields() {
		if _, present := data[f.Name()]; present {
			continue
		}
		if def, ok := f.DefaultValue(); ok {
			data[f.Name()] = def
		}
	}
}

// validateFields checks the working document against the declared schema after
// beforeValidate and before beforeChange commits it. On create every declared
// field is checked; on update only the submitted partial set. Every violating
// field is reported, not just the first. Unknown fields pass through (lenient).
func validateFields(col collection.Collection, data document.Document, partial bool) error {
	var violations []domain.Violation
	for _, f := range col.Fields() {
		value, present := data[f.Name()]
		if !present {
			if f.IsRequired() && !partial {
				violations = append(violations, domain.Violation{
					Field: f.Name(), Message: "field is required",
				})
			}
			continue
		}
		violations = append(violations, checkValue(f.Name(), f, value)...)
	}
	if len(violations) > 0 {
		return domain.NewValidationError(violations...)
	}
	return nil
}

// checkValue validates one value against its field declaration, recursing into
// group, array and blocks shapes. path is the dotted field path for reporting.
func checkValue(path string, f field.Field, value any) []domain.Violation {
	if value == nil {
		if f.IsRequired() {
			return []domain.Violation{{Field: path, Message: "field is required"}}
		}
		return nil
	}

	switch f.FieldType() {
	case field.Text, field.Upload, field.Relationship:
		if _, ok := value.(string); !ok {
			return typeViolation(path, "string", value)
		}
	case field.Number:
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return typeViolation(path, "number", value)
		}
	case field.Checkbox:
		if _, ok := value.(bool); !ok {
			return typeViolation(path, "boolean", value)
		}
	case field.Date:
		return checkDate(path, value)
	case field.Select:
		return checkSelect(path, f, value)
	case field.Group:
		return checkGroup(path, f, value)
	case field.Array:
		return checkArray(path, f, value)
	case field.Blocks:
		return checkBlocks(path, f, value)
	}
	return nil
}

func typeViolation(path, want string, got any) []domain.Violation {
	return []domain.Violation{{
		Field:   path,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
	}}
}

func checkDate(path string, value any) []domain.Violation {
	switch v := value.(type) {
	case time.Time:
		return nil
	case string:
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
				return []domain.Violation{{Field: path, Message: "invalid date, expected RFC 3339"}}
			}
		}
		return nil
	default:
		return typeViolation(path, "date string", value)
	}
}

func checkSelect(path string, f field.Field, value any) []domain.Violation {
	s, ok := value.(string)
	if !ok {
		return typeViolation(path, "string", value)
	}
	for _, opt := range f.SelectOptions() {
		if s == opt {
			return nil
		}
	}
	return []domain.Violation{{
		Field:   path,
		Message: fmt.Sprintf("value %q is not an allowed option", s),
	}}
}

func checkGroup(path string, f field.Field, value any) []domain.Violation {
	m, ok := asMap(value)
	if !ok {
		return typeViolation(path, "object", value)
	}
	var violations []domain.Violation
	for _, child := range f.Fields() {
		childPath := path + "." + child.Name()
		v, present := m[child.Name()]
		if !present {
			if child.IsRequired() {
				violations = append(violations, domain.Violation{
					Field: childPath, Message: "field is required",
				})
			}
			continue
		}
		violations = append(violations, checkValue(childPath, child, v)...)
	}
	return violations
}

func checkArray(path string, f field.Field, value any) []domain.Violation {
	items, ok := value.([]any)
	if !ok {
		return typeViolation(path, "array", value)
	}
	var violations []domain.Violation
	for i, item := range items {
		itemPath := fmt.Sprintf("%s.%d", path, i)
		m, ok := asMap(item)
		if !ok {
			violations = append(violations, typeViolation(itemPath, "object", item)...)
			continue
		}
		for _, child := range f.Fields() {
			childPath := itemPath + "." + child.Name()
			v, present := m[child.Name()]
			if !present {
				if child.IsRequired() {
					violations = append(violations, domain.Violation{
						Field: childPath, Message: "field is required",
					})
				}
				continue
			}
			violations = append(violations, checkValue(childPath, child, v)...)
		}
	}
	return violations
}

// checkBlocks validates each entry of a blocks value against the block shape
// named by its blockType discriminator.
func checkBlocks(path string, f field.Field, value any) []domain.Violation {
	items, ok := value.([]any)
	if !ok {
		return typeViolation(path, "array", value)
	}
	var violations []domain.Violation
	for i, item := range items {
		itemPath := fmt.Sprintf("%s.%d", path, i)
		m, ok := asMap(item)
		if !ok {
			violations = append(violations, typeViolation(itemPath, "object", item)...)
			continue
		}
		slug, _ := m[field.BlockTypeKey].(string)
		if slug == "" {
			violations = append(violations, domain.Violation{
				Field: itemPath + "." + field.BlockTypeKey, Message: "blockType is required",
			})
			continue
		}
		block, declared := f.BlockBySlug(slug)
		if !declared {
			violations = append(violations, domain.Violation{
				Field:   itemPath + "." + field.BlockTypeKey,
				Message: fmt.Sprintf("unknown block type %q", slug),
			})
			continue
		}
		for _, child := range block.Fields() {
			childPath := itemPath + "." + child.Name()
			v, present := m[child.Name()]
			if !present {
				if child.IsRequired() {
					violations = append(violations, domain.Violation{
						Field: childPath, Message: "field is required",
					})
				}
				continue
			}
			violations = append(violations, checkValue(childPath, child, v)...)
		}
	}
	return violations
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case document.Document:
		return m, true
	default:
		return nil, false
	}
}

// checkUniqueIndexes reports a violation for every unique index whose field
// values collide with an existing document other than selfID.
func (s *Service) checkUniqueIndexes(
	ctx context.Context, col collection.Collection, doc document.Document, selfID string,
) error {
	var violations []domain.Violation
	for _, idx := range col.Indexes() {
		if !idx.Unique {
			continue
		}
		filter := make(domain.Filter, len(idx.Fields))
		complete := true
		for _, name := range idx.Fields {
			v, present := doc[name]
			if !present {
				complete = false
				break
			}
			filter[name] = v
		}
		if !complete {
			continue
		}
		res, err := s.storage.Find(ctx, col.DBName(), filter, 1, 1)
		if err != nil {
			return fmt.Errorf("unique check: %w", err)
		}
		for _, existing := range res.Docs {
			if existing.ID() != selfID {
				for _, name := range idx.Fields {
					violations = append(violations, domain.Violation{
						Field: name, Message: "value must be unique",
					})
				}
				break
			}
		}
	}
	if len(violations) > 0 {
		return domain.NewValidationError(violations...)
	}
	return nil
}
