package cmd

import (
	"github.com/spf13/pflag"

	"github.com/conneroisu/sitepack/internal/assembler"
)

// modeValue is a --mode flag. Left unset, the mode comes from NODE_ENV.
type modeValue struct {
	mode assembler.Mode
}

var _ pflag.Value = (*modeValue)(nil)

func (m *modeValue) String() string { return string(m.mode) }

func (m *modeValue) Set(s string) error {
	mode, err := assembler.ParseMode(s)
	if err != nil {
		return err
	}
	m.mode = mode

	return nil
}

func (m *modeValue) Type() string { return "mode" }

// addTargetFlags adds the flags selecting what to build.
func addTargetFlags(flags *pflag.FlagSet, mode *modeValue, variant *string) {
	flags.Var(mode, "mode", "build mode (development, production); defaults to NODE_ENV")
	flags.StringVar(variant, "variant", "", "configuration variant overlaid on the canonical target")
}
