package cidrtrie

import "github.com/go-logr/logr"

type Option func(*options)

type options struct {
	name string
	log  logr.Logger
}

func defaultOptions() options {
	return options{
		name: "cidrtrie",
		log:  logr.Discard(),
	}
}

// WithName names the table; the name shows up in errors and logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. Inserts and removals log at V(1), range
// expansion at V(2).
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}
