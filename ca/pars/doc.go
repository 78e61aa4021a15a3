// Package pars holds the immutable, shared-by-all-threads configuration of
// the track finder: detector geometry, tracking iterations, and the
// resource-limit constants that size the packed ids used elsewhere in ca.
//
// Everything here is built once by the caller (the geometry/parameter
// builder, out of scope per spec) and never mutated afterwards; ca
// components only read it.
package pars
