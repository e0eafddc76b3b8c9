/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package command is the minimal named-command abstraction config.Config
// exposes to an interactive shell: a name, a one-line description, and a
// func(stdout, stderr, args) body.
package command

import "io"

// RunFunc is the body of a Command: write progress to buf, errors to err.
type RunFunc func(buf io.Writer, err io.Writer, args []string)

// CommandInfo is the name/description pair used for discovery without
// constructing the full runnable Command.
type CommandInfo interface {
	Name() string
	Description() string
}

// Command is a named, runnable shell command.
type Command interface {
	CommandInfo
	Run(buf io.Writer, err io.Writer, args []string)
}

type info struct {
	name string
	desc string
}

func (i info) Name() string        { return i.name }
func (i info) Description() string { return i.desc }

// Info returns a CommandInfo with no runnable body, for discovery listings.
func Info(name, description string) CommandInfo {
	return info{name: name, desc: description}
}

type command struct {
	info
	run RunFunc
}

func (c command) Run(buf io.Writer, err io.Writer, args []string) {
	if c.run == nil {
		return
	}
	c.run(buf, err, args)
}

// New returns a runnable Command.
func New(name, description string, run RunFunc) Command {
	return command{info: info{name: name, desc: description}, run: run}
}
