// Package ui prints the command-line output of the exporter: messages,
// run progress, summaries and desktop notifications.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

// Banner is shown at the start of interactive commands
const Banner = "wosexport · citation export automation"

// PrintBanner prints the framed banner
func PrintBanner() {
	fmt.Fprintln(Output, bannerStyle.Render(titleStyle.Render(Banner)))
}

// PrintError prints an error message, with an optional cause
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, Red("✗ "+msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green("✓ "+msg))
}

// PrintInfo prints a label and a value
func PrintInfo(label, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message, with an optional cause
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, Orange("⚠ "+msg))
}

// PrintDim prints a low-emphasis line
func PrintDim(msg string) {
	fmt.Fprintln(Output, Dim(msg))
}
