// Package build runs one compilation of a paper workspace.
//
// A Pipeline executes an immutable Request against its resolved engine:
// one or more engine passes, an optional bibliography pass after the first,
// and repeated passes until the auxiliary state reaches a fixed point. Every
// run produces exactly one Result. Compilation failures are reported inside
// the Result; only failures to launch a subprocess are returned as errors.
//
// All execution paths (one-shot build, watch mode, tests) route through
// Pipeline.Run. Subprocesses go through the Runner interface so tests can
// script engine behaviour without TeX installed.
package build
