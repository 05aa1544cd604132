package request

// Sync marks opts to run the transport on the subscribing goroutine.
func Sync(opts *Options) *Options {
	if opts == nil {
		opts = &Options{}
	}
	opts.sync = true
	return opts
}
