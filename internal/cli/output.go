package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	outputText = "text"
	outputJSON = "json"

	defaultWidth = 100
)

// outputFormat returns the validated --output value.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "", outputText:
		return outputText, nil
	case outputJSON:
		return outputJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

// render writes v as indented JSON or the text produced by text.
func render(cmd *cobra.Command, v any, text func(width int) string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == outputJSON {
		return writeJSON(out, v)
	}
	_, err = fmt.Fprintln(out, text(terminalWidth(out)))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth falls back to defaultWidth when w is not a terminal.
func terminalWidth(w io.Writer) int {
	if !isTerminal(w) {
		return defaultWidth
	}
	f, _ := w.(*os.File)
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
