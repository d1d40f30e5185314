// Package optimize holds small, hot-path comparisons pulled out of
// core/httpx so they can be tuned independently of the parser.
// EqualPath only ever compares a request path against the handful of
// short, fixed default-document candidates in core/httpx, so a single
// length-gated comparison covers every architecture this module
// builds for.
package optimize

// EqualPath reports whether a and b are equal, gated on length first
// since that's the cheapest possible rejection for the
// differently-sized paths this is normally called with.
func EqualPath(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return a == b
}
