package cli

import (
	"errors"
	"fmt"
	"io"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// PrintError prints an error with the user-facing format when it is a
// DeskError. With --verbose the code and cause follow.
func PrintError(w io.Writer, err error) {
	var de *deskerrors.DeskError
	if errors.As(err, &de) {
		fmt.Fprintln(w, de.UserMessage())
		if verbose {
			fmt.Fprintf(w, "\nCode: %s\n", de.Code)
			if de.Cause != nil {
				fmt.Fprintf(w, "Cause: %v\n", de.Cause)
			}
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
