// Package jotter is the composition root of Jotter, a client for a shared
// list of notes kept by a GraphQL backend.
//
// A Store holds the client-side state: the notes, a loading flag, a
// terminal error flag and a two-field form. Every local change (create,
// toggle, delete) is applied optimistically and then sent to the backend
// without waiting; failures are reported, never rolled back. Notes created
// by other clients arrive through the onCreateTodo subscription; the echo
// of this client's own creations is recognized by its client id and ignored.
//
// Usage:
//
//	store, err := jotter.New("https://example.com/graphql",
//		jotter.WithAPIKey(key),
//		jotter.WithLogger(logger),
//	)
//
//	// Subscribe and load the list
//	err = store.Mount(ctx)
//	defer store.Unmount(ctx)
//
//	store.SetField(core.FieldName, "groceries")
//	store.SetField(core.FieldDescription, "milk, eggs")
//	note, err := store.Create(ctx)
//
// Local backends ("memory", "fs", "sqlite") implement the same port and back
// the development server in internal/server.
package jotter
