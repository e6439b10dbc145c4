// Package momentum provides an embedded Go client for the momentum content
// engine: declarative collections, lifecycle hooks, access control,
// versioning and batch operations over Redis or in-process memory.
//
//	client, _ := momentum.New(ctx,
//	    momentum.WithMemory(),
//	    momentum.WithCollections(posts),
//	)
//	defer client.Close()
//
//	doc, _ := client.Documents("posts").Create(ctx, admin, momentum.Document{
//	    "title": "hello",
//	})
//	_, _ = client.Versions("posts").Publish(ctx, admin, doc.ID())
//
// Collections are built with the re-exported schema builders (Collection,
// Field, block and access helpers) or loaded from YAML via WithSchemaFile.
package momentum
