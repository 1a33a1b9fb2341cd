package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestShouldBrowse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		plain  bool
	}{
		{name: "text to a buffer", output: outputText},
		{name: "plain", output: outputText, plain: true},
		{name: "json", output: outputJSON},
		{name: "invalid format", output: "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().String("output", tt.output, "")
			cmd.SetOut(&bytes.Buffer{})
			assert.False(t, shouldBrowse(cmd, tt.plain))
		})
	}
}
