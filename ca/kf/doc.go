// Package kf implements the Kalman-filter track model shared by seeding
// (ca/triplet), extension (ca/extend), the final fit (ca/fit) and clone
// merging (ca/merge): a 7-parameter state (x, y, Tx, Ty, Q/p, time, 1/v)
// with its 7x7 covariance, propagated through a local polynomial magnetic
// field approximation and updated with (x,y,time) measurements.
package kf
