package momentum

import "context"

// Versions is the per-collection versioning sub-client. The collection must
// be declared with versioning enabled.
type Versions struct {
	client *Client
	slug   string
}

// Publish snapshots the current live document into the version history.
func (v *Versions) Publish(ctx context.Context, rctx AccessContext, docID string) (Version, error) {
	return v.client.versions.Publish(ctx, rctx, v.slug, docID)
}

// List returns a document's snapshots, newest first.
func (v *Versions) List(ctx context.Context, rctx AccessContext, docID string, limit int) ([]Version, error) {
	return v.client.versions.List(ctx, rctx, v.slug, docID, limit)
}

// Compare reports the top-level fields that differ between two snapshots.
func (v *Versions) Compare(ctx context.Context, rctx AccessContext, fromID, toID string) ([]Difference, error) {
	return v.client.versions.Compare(ctx, rctx, v.slug, fromID, toID)
}
