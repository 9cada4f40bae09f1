package go_func_utils

import "runtime/debug"
import "log"

func SafeGo(logger *log.Logger, fn func()) {
	// the curses UI swallows stdout, so the panic goes to our logger before we crash out again
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}

// SafeCall runs fn on the calling goroutine and swallows a panic after logging it.
// Used for tick and listener callbacks where one failure must not stop the next call.
// Returns false if fn panicked.
func SafeCall(logger *log.Logger, label string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("%s: recovered panic: %v\n%s", label, r, debug.Stack())
			ok = false
		}
	}()
	fn()
	return true
}
