// Package ca re-exports the core data types consumers touch most, so
// downstream code can hold a ca.Hit or ca.Station without importing the
// parameter package directly.
package ca

import "github.com/cbm-reco/catrack/ca/pars"

// Hit is one space-time measurement; see pars.Hit.
type Hit = pars.Hit

// Station is one tracking-detector layer's geometry; see pars.Station.
type Station = pars.Station

// Parameters is the shared, immutable configuration; see pars.Parameters.
type Parameters = pars.Parameters
