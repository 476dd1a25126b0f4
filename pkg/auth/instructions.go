package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains what the operator has to do while the browser
// logs in through the institutional channel
func ShowLoginGuide(w io.Writer, channel string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "LOGGING IN THROUGH %s\n", strings.ToUpper(channel))
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. A Chrome window opens on the channel's home page.")
	fmt.Fprintln(w, "   The username and password are typed in for you.")
	fmt.Fprintln(w, "2. Solve the captcha in that window and submit the form.")
	fmt.Fprintln(w, "3. The tool then opens the database through the channel menu.")
	fmt.Fprintln(w, "   If the database asks for a second captcha, solve it as well.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Do not click around while an export is running; the tool moves")
	fmt.Fprintln(w, "the pointer itself. The profile stays logged in for the next run.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Never run two exports on the same account at once; the database")
	fmt.Fprintln(w, "treats it as account sharing.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}
