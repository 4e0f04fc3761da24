// Package console provides the shared leveled logger used across the
// generator.
package console

import (
	"fmt"
	"io"
	"os"
)

// Console is a minimal leveled logger writing to a single destination.
type Console struct {
	// DebugLevel enables Debug output when greater than zero.
	DebugLevel int

	// Out is the destination writer, os.Stderr when nil.
	Out io.Writer
}

// Logger is the process-wide console instance.
var Logger = &Console{}

func (c *Console) writer() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stderr
}

// Debug prints a formatted message when debug output is enabled.
func (c *Console) Debug(format string, v ...interface{}) {
	if c.DebugLevel <= 0 {
		return
	}
	fmt.Fprintf(c.writer(), "DEBUG: "+format+"\n", v...)
}

// Info prints a formatted message.
func (c *Console) Info(format string, v ...interface{}) {
	fmt.Fprintf(c.writer(), format+"\n", v...)
}

// Error prints a formatted error message.
func (c *Console) Error(format string, v ...interface{}) {
	fmt.Fprintf(c.writer(), "ERROR: "+format+"\n", v...)
}
