// flag_size.go -- value implementation of a size input
//
// A size is an integer with a suffix of k, M, G, T, P, E denoting
// kilo, Mega, Giga, Tera, Peta, Exa (multiples of 1024). Ported from
// the teacher's testsuite/flag_size.go and kept as a pflag.Value; no
// command-line flag uses it - the "mkfs file ... size=" DSL verb is
// its only user, via Set().
package main

import (
	flag "github.com/opencoff/pflag"
	utils "github.com/opencoff/go-utils"
)

type SizeValue uint64

var _ flag.Value = NewSizeValue()

func NewSizeValue() *SizeValue {
	v := SizeValue(0)
	return &v
}

func (v *SizeValue) String() string {
	return utils.HumanizeSize(uint64(*v))
}

func (v *SizeValue) Set(s string) error {
	z, err := utils.ParseSize(s)
	*v = SizeValue(z)
	return err
}

func (v *SizeValue) Type() string {
	return "size"
}

func (v *SizeValue) Value() uint64 {
	return uint64(*v)
}
