// Package mpath encodes tree positions as materialized paths.
//
// A path is a sequence of fixed-width steps. Each step is one node's sibling
// ordinal written in base len(alphabet), left padded with the alphabet's
// first symbol. The most significant step belongs to the root ancestor, the
// least significant to the node itself, so comparing paths as strings
// orders nodes depth first, left to right.
package mpath

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotree/internal/validation"
	"github.com/arthur-debert/nanotree/types"
)

// Codec converts between ordinals and path steps for one alphabet and step
// length. A Codec is immutable and safe for concurrent use.
type Codec struct {
	alphabet string
	step     int
	base     int64
	max      int64
	digits   [256]int16
}

// New creates a codec after validating the alphabet and step length.
func New(alphabet string, stepLength int) (*Codec, error) {
	if err := validation.ValidateAlphabet(alphabet); err != nil {
		return nil, err
	}
	if err := validation.ValidateStepLength(len(alphabet), stepLength); err != nil {
		return nil, err
	}

	c := &Codec{
		alphabet: alphabet,
		step:     stepLength,
		base:     int64(len(alphabet)),
	}
	for i := range c.digits {
		c.digits[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		c.digits[alphabet[i]] = int16(i)
	}

	max := int64(1)
	for i := 0; i < stepLength; i++ {
		max *= c.base
	}
	c.max = max - 1
	return c, nil
}

// FromOptions creates the codec described by tree options.
func FromOptions(opts types.Options) (*Codec, error) {
	return New(opts.Alphabet, opts.StepLength)
}

// Alphabet returns the digit symbols.
func (c *Codec) Alphabet() string { return c.alphabet }

// StepLength returns the width of one step.
func (c *Codec) StepLength() int { return c.step }

// MaxOrdinal is the largest ordinal a single step can hold.
func (c *Codec) MaxOrdinal() int64 { return c.max }

// EncodeStep returns the fixed-width representation of ordinal. Ordinals
// outside [0, MaxOrdinal] fail with an *types.OverflowError.
func (c *Codec) EncodeStep(ordinal int64) (string, error) {
	if ordinal < 0 || ordinal > c.max {
		return "", &types.OverflowError{Ordinal: ordinal, Max: c.max}
	}

	buf := make([]byte, c.step)
	for i := c.step - 1; i >= 0; i-- {
		buf[i] = c.alphabet[ordinal%c.base]
		ordinal /= c.base
	}
	return string(buf), nil
}

// DecodeStep is the inverse of EncodeStep.
func (c *Codec) DecodeStep(block string) (int64, error) {
	if len(block) != c.step {
		return 0, fmt.Errorf("%w: step %q has length %d, want %d", types.ErrInvalidPath, block, len(block), c.step)
	}

	var n int64
	for i := 0; i < len(block); i++ {
		d := c.digits[block[i]]
		if d < 0 {
			return 0, fmt.Errorf("%w: symbol %q in step %q is not in the alphabet", types.ErrInvalidPath, block[i], block)
		}
		n = n*c.base + int64(d)
	}
	return n, nil
}

// lowStep and highStep bound every possible step.
func (c *Codec) lowStep() string {
	return strings.Repeat(c.alphabet[:1], c.step)
}

func (c *Codec) highStep() string {
	return strings.Repeat(c.alphabet[len(c.alphabet)-1:], c.step)
}
