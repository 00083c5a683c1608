// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package fuzzutil

// Step is one decoded action in a TestRun.
type Step interface {
	DoStep()
}

// TestRun decodes a byte slice into a sequence of Steps via stepMaker,
// then executes them in order. cleanup runs once after every step has run.
type TestRun struct {
	steps   []Step
	cleanup func()
}

// NewTestRun decodes bytes into steps by repeatedly calling stepMaker until
// the underlying ByteConsumer is exhausted.
func NewTestRun(bytes []byte, stepMaker func(*ByteConsumer) Step, cleanup func()) *TestRun {
	tr := &TestRun{
		steps:   make([]Step, 0),
		cleanup: cleanup,
	}

	c := NewByteConsumer(bytes)
	for c.Len() > 0 {
		tr.steps = append(tr.steps, stepMaker(c))
	}

	return tr
}

// Run executes every decoded step in order, then runs cleanup.
func (t *TestRun) Run() {
	defer t.cleanup()
	for _, step := range t.steps {
		step.DoStep()
	}
}
