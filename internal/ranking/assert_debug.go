//go:build rankdebug

package ranking

import "fmt"

func assertf(ok bool, format string, args ...any) {
	if !ok {
		panic(fmt.Sprintf("ranking invariant violated: "+format, args...))
	}
}
