package mathutil

import (
	"golang.org/x/exp/constraints"

	"github.com/xeptore/spotstat/must"
)

// DivCeil divides a by b rounding towards positive infinity.
func DivCeil[T constraints.Signed](a, b T) T {
	must.Be(b != 0, "division by zero")

	q, r := a/b, a%b
	if r != 0 && (a >= 0) == (b > 0) {
		q++
	}

	return q
}

// PageCount returns how many pages of size items are needed to hold total
// items. It never returns less than one so the first page is always fetched.
func PageCount[T constraints.Signed](total, size T) T {
	if total <= 0 {
		return 1
	}

	return DivCeil(total, size)
}
