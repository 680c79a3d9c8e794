package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var errNoPassword = errors.New("no password given and stdin is not a terminal")

// PromptPassword asks for the index password on the terminal without echo.
func PromptPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errNoPassword
	}
	if _, err := fmt.Fprint(w, "Enter index password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer cryptox.WipeByteArray(pw)
	if len(pw) == 0 {
		return "", errors.New("empty password")
	}
	return string(pw), nil
}
