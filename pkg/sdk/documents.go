package momentum

import (
	"context"

	dombatch "github.com/momentum-hq/momentum/internal/domain/batch"
	batchuc "github.com/momentum-hq/momentum/internal/usecase/batch"
	transferuc "github.com/momentum-hq/momentum/internal/usecase/transfer"
)

// Documents is the per-collection document sub-client. Every call runs the
// full lifecycle pipeline: access control, hooks, validation, storage.
type Documents struct {
	client *Client
	slug   string
}

// Create stores a new document.
func (d *Documents) Create(ctx context.Context, rctx AccessContext, data Document) (Document, error) {
	return d.client.lifecycle.Create(ctx, rctx, d.slug, data)
}

// Update applies a partial payload to an existing document.
func (d *Documents) Update(ctx context.Context, rctx AccessContext, id string, partial Document) (Document, error) {
	return d.client.lifecycle.Update(ctx, rctx, d.slug, id, partial)
}

// Delete removes a document and returns it.
func (d *Documents) Delete(ctx context.Context, rctx AccessContext, id string) (Document, error) {
	return d.client.lifecycle.Delete(ctx, rctx, d.slug, id)
}

// Get retrieves one document by id.
func (d *Documents) Get(ctx context.Context, rctx AccessContext, id string) (Document, error) {
	return d.client.lifecycle.FindByID(ctx, rctx, d.slug, id)
}

// Find lists documents matching the filter, one page at a time.
func (d *Documents) Find(
	ctx context.Context, rctx AccessContext, filter Filter, page, limit int,
) (FindResult, error) {
	return d.client.lifecycle.Find(ctx, rctx, d.slug, filter, page, limit)
}

// BatchCreate runs the create pipeline once per payload. Items fail
// independently.
func (d *Documents) BatchCreate(
	ctx context.Context, rctx AccessContext, items []Document,
) ([]Document, []BatchResult) {
	out := d.client.batch.CreateMany(ctx, rctx, d.slug, items)
	return out.Docs, out.Results
}

// BatchUpdate runs the update pipeline once per (id, partial) pair.
func (d *Documents) BatchUpdate(
	ctx context.Context, rctx AccessContext, items map[string]Document,
) ([]Document, []BatchResult) {
	updates := make([]batchuc.UpdateItem, 0, len(items))
	for id, data := range items {
		updates = append(updates, batchuc.UpdateItem{ID: id, Data: data})
	}
	out := d.client.batch.UpdateMany(ctx, rctx, d.slug, updates)
	return out.Docs, out.Results
}

// BatchDelete runs the delete pipeline once per id.
func (d *Documents) BatchDelete(
	ctx context.Context, rctx AccessContext, ids []string,
) ([]Document, []BatchResult) {
	out := d.client.batch.DeleteMany(ctx, rctx, d.slug, ids)
	return out.Docs, out.Results
}

// ExportJSON collects every readable document into the JSON export envelope.
func (d *Documents) ExportJSON(ctx context.Context, rctx AccessContext) (transferuc.Export, error) {
	return d.client.transfer.ExportJSON(ctx, rctx, d.slug)
}

// ExportCSV renders every readable document as CSV.
func (d *Documents) ExportCSV(ctx context.Context, rctx AccessContext) ([]byte, int, error) {
	return d.client.transfer.ExportCSV(ctx, rctx, d.slug)
}

// Import runs every payload through the create pipeline. Rows fail
// independently; the result reports both sides.
func (d *Documents) Import(
	ctx context.Context, rctx AccessContext, docs []Document,
) (transferuc.ImportResult, error) {
	return d.client.transfer.Import(ctx, rctx, d.slug, docs, "")
}

// ImportCSV parses a delimited payload and imports each data row.
func (d *Documents) ImportCSV(
	ctx context.Context, rctx AccessContext, data string,
) (transferuc.ImportResult, error) {
	return d.client.transfer.Import(ctx, rctx, d.slug, nil, data)
}

// BatchStatusOK reports whether a batch result succeeded.
func BatchStatusOK(r BatchResult) bool {
	return r.Status() == dombatch.StatusOK
}
