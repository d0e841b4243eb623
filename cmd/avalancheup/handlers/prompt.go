package handlers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// confirm asks the user to approve an action. Without a terminal it
// refuses rather than assuming consent, so scripted runs must pass
// --skip-prompt.
func confirm(in io.Reader, out io.Writer, action string) (bool, error) {
	if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		return false, fmt.Errorf("stdin is not a terminal; re-run with --skip-prompt to %s", action)
	}

	fmt.Fprintf(out, "about to %s, continue? [y/N]: ", action)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
