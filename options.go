package simdjson

// ParserOption is a parser option.
type ParserOption func(pj *internalParsedJson) error

// WithCopyStrings will copy strings so they no longer reference the input.
// For enhanced performance, simdjson-go can point back into the original JSON buffer for strings,
// however this can lead to issues in streaming use cases scenarios, or scenarios in which
// the underlying JSON buffer is reused. So the default behaviour is to create copies of all
// strings (not just those transformed anyway for unicode escape characters) into the separate
// Strings buffer (at the expense of using more memory and less performance).
// Default: true - strings are copied.
func WithCopyStrings(b bool) ParserOption {
	return func(pj *internalParsedJson) error {
		pj.copyStrings = b
		return nil
	}
}

// WithMaxDepth sets the maximum nesting depth of objects and arrays a
// document may contain before DEPTH_ERROR is returned.
// Default: 1024.
func WithMaxDepth(depth int) ParserOption {
	return func(pj *internalParsedJson) error {
		if depth <= 0 {
			return errf(DEPTH_ERROR, "max depth must be positive, got %d", depth)
		}
		pj.maxDepth = depth
		return nil
	}
}

// WithMaxCapacity rejects any input longer than max bytes with CAPACITY,
// instead of allocating buffers to fit it. A value of 0 (the default)
// leaves input size unbounded.
func WithMaxCapacity(max uint64) ParserOption {
	return func(pj *internalParsedJson) error {
		pj.maxCapacity = max
		return nil
	}
}

// WithBatchSize sets the window size used by the batched stream driver
// (see stream.go). Values below a reasonable minimum are clamped up, since
// a window must be able to hold at least one typical document plus its
// padding.
// Default: 1MiB.
func WithBatchSize(n int) ParserOption {
	return func(pj *internalParsedJson) error {
		const minBatchSize = 32 << 10
		if n < minBatchSize {
			n = minBatchSize
		}
		pj.batchSize = n
		return nil
	}
}

// WithPipeline enables the batched stream driver's optional stage-1/stage-2
// worker pipeline (spec.md §4.F.3, §5.1): stage 1 of the next window runs on
// a helper goroutine while stage 2 of the current window runs on the
// caller. Has no effect outside NewStreamDriver.
// Default: false.
func WithPipeline(b bool) ParserOption {
	return func(pj *internalParsedJson) error {
		pj.pipeline = b
		return nil
	}
}

// WithBackend forces stage 1 to report the named backend instead of
// selecting one from runtime CPU feature detection. Intended for testing
// and for reproducing behavior across machines; it does not change parsing
// results, only the name reported by SupportedBackend.
func WithBackend(name string) ParserOption {
	return func(pj *internalParsedJson) error {
		pj.forceBackend = name
		return nil
	}
}

// SupportedBackend reports the stage-1 kernel name that will be used for
// the next parse (spec.md §4.A.3).
func (pj *internalParsedJson) SupportedBackend() string {
	if pj.forceBackend != "" {
		return pj.forceBackend
	}
	return backendName()
}
