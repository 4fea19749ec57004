// Package cli binds command line flags and environment variables to
// program options.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
}

// NewOpt creates a new command line option.
func NewOpt(destP interface{}, flag string, dflt interface{}, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// NewViper returns a viper reading environment variables named
// <PREFIX>_<FLAG>, with "-" in flag names turned into "_".
func NewViper(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(prefix))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// BindOptions adds opts as persistent flags of cmd and registers them with v.
// Call Apply once the flags were parsed to resolve the final values.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) {
	fs := cmd.PersistentFlags()
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			fs.StringVar(destP, o.Flag, d, o.Desc)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			fs.IntVar(destP, o.Flag, d, o.Desc)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			fs.BoolVar(destP, o.Flag, d, o.Desc)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			fs.DurationVar(destP, o.Flag, d, o.Desc)
		case *zapcore.Level:
			d := zapcore.InfoLevel
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			*destP = d
			fs.Var((*levelValue)(destP), o.Flag, o.Desc)
		default:
			panic(fmt.Errorf("unknown destination type %T", o.DestP))
		}
		if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
			panic(err)
		}
	}
}

// Apply copies the resolved value of every option into its destination.
// Flags set on the command line win over environment variables, which win
// over defaults.
func Apply(v *viper.Viper, opts []Opt) error {
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			*destP = v.GetString(o.Flag)
		case *int:
			*destP = v.GetInt(o.Flag)
		case *bool:
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			*destP = v.GetDuration(o.Flag)
		case *zapcore.Level:
			var level levelValue
			if err := level.Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("%s: %w", o.Flag, err)
			}
			*destP = zapcore.Level(level)
		}
	}
	return nil
}

type levelValue zapcore.Level

func (l *levelValue) String() string {
	return zapcore.Level(*l).String()
}

func (l *levelValue) Set(s string) error {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return fmt.Errorf("unknown log level; supported levels are debug, info, warn, error")
	}
	*l = levelValue(level)
	return nil
}

func (l *levelValue) Type() string {
	return "Log-Level"
}
