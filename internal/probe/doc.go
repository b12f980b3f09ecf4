// Package probe implements the HTTP probe primitive used by every discovery
// phase.
//
// A probe is a bounded GET against the appliance's health endpoint followed by
// an optional capability lookup. Network failures are soft: refused
// connections, DNS errors, timeouts, non-200 responses and malformed JSON all
// yield "no descriptor" rather than an error, because nearly every probe
// target in a sweep is expected to be something other than the appliance.
// The cause of each miss is classified into a ProbeError and logged at debug
// level.
//
// # Match Criteria
//
// A health response is a match only when it reports status "healthy" and
// carries at least one appliance marker field (platform, device_id,
// recorder). A hostname or service name that looks right is never enough on
// its own.
//
// # Usage Example
//
//	p := probe.NewProber()
//	desc := p.ProbeDevice(ctx, "192.168.1.20", probe.DefaultPort,
//	    probe.SubnetTimeout, device.SourceSubnetProbe)
//	if desc != nil {
//	    fmt.Println("found", desc)
//	}
//
// # Cancellation
//
// ProbeDevice detaches from the caller's cancellation: once started, a probe
// runs until it answers or its own timeout expires. Callers stop scheduling
// new probes instead of aborting in-flight ones.
package probe
