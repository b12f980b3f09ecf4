// Package discovery runs appliance discovery scans.
//
// An Orchestrator owns at most one active Session. A scan runs three phases
// in a fixed order, each independently switchable:
//
//  1. mesh: probe online peers of the mesh VPN
//  2. hostname: probe fixed addresses, well-known names and mDNS answers
//  3. subnet: sweep every local /24
//
// Every descriptor a phase produces goes through a Registry. The registry
// is owned by a single goroutine and keys descriptors by stable device ID,
// so an appliance reachable over several transports is reported once. When
// the same appliance is seen over a local and a remote transport, the local
// address becomes primary and the other is kept as the fallback URL.
//
// Progress is reported to an EventSink: started, phase, scanning-subnet,
// subnet-progress, device-found and complete.
//
// # Usage Example
//
//	orch := discovery.New(discovery.DefaultOptions(), discovery.SinkFunc(func(e discovery.Event) {
//	    fmt.Println(e.Type)
//	}))
//	result, err := orch.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, d := range result.Devices {
//	    fmt.Println(d.String())
//	}
package discovery
