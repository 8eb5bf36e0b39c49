package synth

import (
	"fmt"
	"os"
)

var debug = os.Getenv("BOUNDARYCHECK_DEBUG") == "1"

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
