//go:build !rankdebug

package ranking

// assertf is a no-op in regular builds. Build with -tags rankdebug to panic on
// broken invariants.
func assertf(bool, string, ...any) {}
