// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package script

import (
	"context"
	"fmt"
)

// Output is the value produced by a script, one entry per printed line.
type Output []string

// Value converts a script return value into output lines.
// Strings are one line, string slices one line per element and nil is no
// output. Anything else is formatted with fmt.Sprint.
func Value(v any) Output {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return Output{x}
	case []string:
		return Output(x)
	case Output:
		return x
	case []any:
		out := make(Output, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}

		return out
	default:
		return Output{fmt.Sprint(x)}
	}
}

// Script is run once per work item.
type Script interface {
	Run(ctx context.Context, ec *Context) (Output, error)
}

var _ Script = Func(nil)

// Func adapts an ordinary function to the Script interface.
type Func func(ctx context.Context, ec *Context) (Output, error)

// Run implements Script.
func (f Func) Run(ctx context.Context, ec *Context) (Output, error) {
	return f(ctx, ec)
}
