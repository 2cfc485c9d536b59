package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// promptPassword reads the account password from the terminal without
// echoing it.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("SEALBOX_PASSWORD is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")

	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}
