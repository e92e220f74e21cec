// Package scaffold creates paper workspaces and adds sections and figures
// to them. Skeleton files are embedded templates rendered with text/template
// using << >> delimiters, which never collide with LaTeX braces.
package scaffold
