package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// PrintError prints a command error to stderr: the full wrapped error
// chain under --verbose, just the top-level message otherwise.
func PrintError(userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", technicalErr)
	} else {
		fmt.Fprintln(os.Stderr, userMsg)
	}
}
