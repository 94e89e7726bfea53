package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"tutor/internal/pkg/mathtools"
)

var validateCmd = &cobra.Command{
	Use:   "validate <userExpr> <expectedExpr>",
	Short: "Check whether two arithmetic expressions are numerically equal",
	Example: `  tutor validate "3/4" "0.75"
  tutor validate "x = 2*sqrt(9)" "6"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := mathtools.ValidateNumericAnswer(args[0], args[1])

		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
