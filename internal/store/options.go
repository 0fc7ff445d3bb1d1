package store

// Observer is notified after every successful store write.
type Observer interface {
	StoreWritten(store string, bytes int)
}

// Option configures a file store.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver reports writes to o, e.g. a metrics recorder.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) written(store string, n int) {
	if o.observer != nil {
		o.observer.StoreWritten(store, n)
	}
}
