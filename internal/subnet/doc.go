// Package subnet enumerates the host's local IPv4 networks and sweeps them
// for the appliance.
//
// Virtual, container and VPN interfaces are skipped by name, link-local
// addresses are skipped by range, and every network is normalised to its
// /24. A sweep probes .1 through .254 in fixed-size batches with a short
// pause in between, checking for cancellation at each batch boundary.
package subnet
