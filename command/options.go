package command

import "time"

// Option customizes command auditing metadata.
type Option func(*options)

type options struct {
	priority Priority
	timeout  time.Duration
	metadata map[string]any
}

// WithPriority sets the command priority.
func WithPriority(p Priority) Option {
	return func(o *options) { o.priority = p }
}

// WithTimeout attaches an advisory timeout to the command.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMetadata attaches free-form metadata to the command.
func WithMetadata(md map[string]any) Option {
	return func(o *options) { o.metadata = md }
}

func applyOptions(kind Kind, opts []Option) base {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newBase(kind, o.priority, o.timeout, o.metadata)
}
