package jotter_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/jotter"
	"github.com/aretw0/jotter/pkg/core"
)

// Example_basic creates a note on an in-memory backend and reads the state back.
func Example_basic() {
	store, err := jotter.New("", jotter.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Mount(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Unmount(ctx)

	store.SetField(core.FieldName, "groceries")
	store.SetField(core.FieldDescription, "milk, eggs")
	if _, err := store.Create(ctx); err != nil {
		log.Fatal(err)
	}
	store.Wait()

	state := store.Snapshot()
	fmt.Printf("%d note(s), first: %s\n", len(state.Notes), state.Notes[0].Name)
	fmt.Printf("form cleared: %v\n", state.Form == core.FormDraft{})
	// Output:
	// 1 note(s), first: groceries
	// form cleared: true
}

// Example_validation shows the message returned for an incomplete form.
func Example_validation() {
	store, err := jotter.New("", jotter.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}

	store.SetField(core.FieldName, "only a name")
	_, err = store.Create(context.Background())
	fmt.Println(err)
	// Output:
	// please enter a name and description
}
