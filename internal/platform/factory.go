package platform

import (
	"github.com/aretw0/jotter/pkg/core"
)

// store, err := jotter.New("https://example.com/graphql", jotter.WithAPIKey(key))
// The URI argument is adapter-specific (see Open).
func New(uri string, opts ...Option) (*core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	backend, err := open(uri, o)
	if err != nil {
		return nil, err
	}

	session := o.clientID
	if session == "" {
		session = core.NewClientID()
	}

	storeOpts := []core.StoreOption{core.WithStoreLogger(o.logger)}
	if o.onMutationError != nil {
		storeOpts = append(storeOpts, core.WithMutationErrorHandler(o.onMutationError))
	}

	return core.NewStore(session, backend, storeOpts...), nil
}
