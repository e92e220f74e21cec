// Package engine holds the static table of supported TeX engines and the
// resolver that picks one of them for a build.
//
// Engine differences are data: each Spec lists executable candidates,
// capability flags, an argument template and the log markers that classify a
// run as failed. There is no per-engine type hierarchy; callers index the
// Registry by name.
//
// Resolution order is a pure function of (explicit name, configured
// preference, registry order). An explicit name never falls back.
package engine
