// Package domain models the wind-flow simulation setup around building
// footprints.
//
// # Coordinate and Wind Conventions
//
// Footprints are 2D polygons in a local metric coordinate system with X
// pointing east and Y pointing north. Wind direction follows the
// meteorological convention: degrees clockwise from north, naming the
// direction the wind blows FROM. Air therefore travels along the flow
// vector
//
//	f = (-sin θ, -cos θ)
//
// so a 0° (north) wind pushes air toward -Y (south).
//
// # Domain Sizing (COST 732)
//
// The computational domain extends the building bounding box by multiples of
// the tallest building height H, following the COST Action 732 guideline for
// the CFD simulation of flows in the urban environment:
//
//	upwind (inlet) side:    inletFactor   × H
//	downwind (outlet) side: outletFactor  × H
//	cross-flow sides:       lateralFactor × H
//	domain top:             heightFactor  × H
//
// The defaults (3H / 8H / 3H / 5H) are deliberately below the published
// 5H / 15H / 5H / 6H figures: the service targets interactive comparative
// studies, not publication-grade validation runs.
//
// A face is classified as inlet or outlet only when the flow component
// normal to it clearly dominates (|f| above a fixed threshold). Faces the
// flow runs roughly parallel to get a permissive outlet-type condition that
// tolerates back-flow, because a true inlet must match the analytically
// prescribed inflow profile and a side-slipping flow does not satisfy it.
//
// # Atmospheric Boundary Layer Profile
//
// Inflow turbulence constants come from the standard logarithmic ABL
// profile with von Kármán constant κ=0.41 and Cμ=0.09:
//
//	u* = U·κ / ln((zRef+z0)/z0)
//	k  = u*² / √Cμ
//	ε  = u*³ / (κ·(zRef+z0))
//
// z0 defaults to 0.5 m (urban roughness) and zRef to the 10 m
// meteorological reference height.
package domain
