// ghadapter runs a command that prints a JSON object, such as bin/compare, and
// exposes the object's fields as GitHub Actions step outputs. The command's
// exit code is preserved so a mismatch still fails the step after its diff
// path has been published.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ghadapter command [args...]")
		os.Exit(2)
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		exitCode = exitErr.ExitCode()
	}
	_, _ = os.Stdout.Write(output)

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		f, err := os.OpenFile(githubOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := writeOutputs(f, output); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		_ = f.Close()
	}

	os.Exit(exitCode)
}

// writeOutputs writes key=value lines in key order. Output that is not a JSON
// object is ignored.
func writeOutputs(w io.Writer, output []byte) error {
	var result map[string]any
	if err := json.Unmarshal(output, &result); err != nil {
		return nil
	}

	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s=%v\n", key, result[key]); err != nil {
			return err
		}
	}
	return nil
}
