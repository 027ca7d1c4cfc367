package cache

// ScopedKeyer prefixes every key of an inner Keyer. Servers that share one
// Redis instance use it to keep their aports trees apart:
//
//	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "edge:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ScanKey implements Keyer.
func (k *ScopedKeyer) ScanKey(opts ScanKeyOpts) string {
	return k.prefix + k.inner.ScanKey(opts)
}

// ResponseKey implements Keyer.
func (k *ScopedKeyer) ResponseKey(generation, route, query string) string {
	return k.prefix + k.inner.ResponseKey(generation, route, query)
}
