package cmd

import "fmt"

// wrapFatalln is used to exit the command on a fatal error, wrapping
// the cause with some additional context.
func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
	} else {
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}
