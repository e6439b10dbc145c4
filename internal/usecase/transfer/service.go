// Package transfer serializes collections to JSON or CSV and imports them
// back through the normal create pipeline, one row at a time.
package transfer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/registry"
)

// Format selects the export/import encoding.
type Format string

// Supported formats. JSON is the default when unspecified.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

const exportPageSize = 100

// Export is the JSON export envelope.
type Export struct {
	Collection string              `json:"collection"`
	Format     Format              `json:"format"`
	TotalDocs  int                 `json:"totalDocs"`
	Docs       []document.Document `json:"docs"`
}

// ImportError reports one failed row by its position in the input.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportResult enumerates the outcome of an import. Imported plus the number
// of errors always equals Total.
type ImportResult struct {
	Imported int                 `json:"imported"`
	Total    int                 `json:"total"`
	Errors   []ImportError       `json:"errors"`
	Docs     []document.Document `json:"docs"`
}

// Service coordinates import and export.
type Service struct {
	reg    *registry.Registry
	lister Lister
	create Creator
	logger *zap.Logger
}

// New creates a transfer service.
func New(reg *registry.Registry, lister Lister, create Creator, logger *zap.Logger) *Service {
	return &Service{reg: reg, lister: lister, create: create, logger: logger}
}

// ParseFormat validates a client-supplied format string. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", domain.NewValidationError(domain.Violation{
			Field: "format", Message: fmt.Sprintf("unsupported export format %q", s),
		})
	}
}

// collect pages through every matching document via the read pipeline, so
// export respects defaultWhere scoping and field-level read access.
func (s *Service) collect(
	ctx context.Context, rctx access.Context, slug string,
) ([]document.Document, error) {
	var docs []document.Document
	for page := 1; ; page++ {
		res, err := s.lister.Find(ctx, rctx, slug, nil, page, exportPageSize)
		if err != nil {
			return nil, err
		}
		docs = append(docs, res.Docs...)
		if len(docs) >= res.TotalDocs || len(res.Docs) == 0 {
			return docs, nil
		}
	}
}

// ExportJSON serializes all matching documents into the JSON envelope.
func (s *Service) ExportJSON(
	ctx context.Context, rctx access.Context, slug string,
) (Export, error) {
	docs, err := s.collect(ctx, rctx, slug)
	if err != nil {
		return Export{}, err
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return Export{Collection: slug, Format: FormatJSON, TotalDocs: len(docs), Docs: docs}, nil
}

// ExportCSV serializes all matching documents to CSV. The header row is the
// union of field names actually present across the documents, sorted for
// determinism; one data row per document.
func (s *Service) ExportCSV(
	ctx context.Context, rctx access.Context, slug string,
) ([]byte, int, error) {
	docs, err := s.collect(ctx, rctx, slug)
	if err != nil {
		return nil, 0, err
	}

	present := make(map[string]bool)
	for _, doc := range docs {
		for name := range doc {
			present[name] = true
		}
	}
	header := make([]string, 0, len(present))
	for name := range present {
		header = append(header, name)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, doc := range docs {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = cellString(doc[name])
		}
		if err := w.Write(row); err != nil {
			return nil, 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), len(docs), nil
}

// cellString renders one field value for CSV. Nested shapes are JSON-encoded.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Import runs every row through the normal create pipeline. It requires an
// authenticated request and fails before any row is processed when the
// payload is empty. Rows fail independently.
func (s *Service) Import(
	ctx context.Context, rctx access.Context, slug string,
	docs []document.Document, csvData string,
) (ImportResult, error) {
	if !rctx.Authenticated() {
		return ImportResult{}, domain.ErrUnauthorized
	}

	if docs == nil && csvData != "" {
		parsed, err := s.parseCSV(slug, csvData)
		if err != nil {
			return ImportResult{}, err
		}
		docs = parsed
	}
	if len(docs) == 0 {
		return ImportResult{}, domain.NewValidationError(domain.Violation{
			Field: "docs", Message: "import payload contains no documents",
		})
	}

	result := ImportResult{Total: len(docs), Errors: []ImportError{}, Docs: []document.Document{}}
	for i, data := range docs {
		doc, err := s.create.Create(ctx, rctx, slug, data)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Index: i, Message: err.Error()})
			continue
		}
		result.Imported++
		result.Docs = append(result.Docs, doc)
	}

	s.logger.Info("import finished",
		zap.String("collection", slug),
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Errors)))
	return result, nil
}

// parseCSV reads a delimited payload whose first row is the header. Cell
// values are coerced by the declared field type; nested shapes are parsed as
// JSON. A header with no data rows is a validation failure.
func (s *Service) parseCSV(slug, data string) ([]document.Document, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError(domain.Violation{
			Field: "data", Message: "malformed csv: " + err.Error(),
		})
	}
	if len(rows) < 2 {
		return nil, domain.NewValidationError(domain.Violation{
			Field: "data", Message: "csv payload contains no data rows",
		})
	}

	entry, ok := s.reg.Get(slug)
	if !ok {
		return nil, fmt.Errorf("%q: %w", slug, domain.ErrNotFound)
	}

	header := rows[0]
	docs := make([]document.Document, 0, len(rows)-1)
	for _, row := range rows[1:] {
		doc := make(document.Document, len(header))
		for i, name := range header {
			if i >= len(row) || row[i] == "" {
				continue
			}
			doc[name] = s.coerceCell(entry, name, row[i])
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// coerceCell converts a CSV cell to the declared field type. Undeclared
// fields stay strings (lenient passthrough).
func (s *Service) coerceCell(entry registry.Entry, name, cell string) any {
	f, declared := entry.Collection.FieldByName(name)
	if !declared {
		return cell
	}
	switch f.FieldType() {
	case field.Number:
		if n, err := strconv.ParseFloat(cell, 64); err == nil {
			return n
		}
	case field.Checkbox:
		if b, err := strconv.ParseBool(cell); err == nil {
			return b
		}
	case field.Group:
		var m map[string]any
		if err := json.Unmarshal([]byte(cell), &m); err == nil {
			return m
		}
	case field.Array, field.Blocks:
		var items []any
		if err := json.Unmarshal([]byte(cell), &items); err == nil {
			return items
		}
	}
	return cell
}
