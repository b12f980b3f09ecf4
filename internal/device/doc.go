// Package device defines the descriptor for one reachable instance of the
// recording appliance.
//
// A Descriptor is ephemeral: it lives for one scan session and is keyed by a
// stable ID. When the appliance reports a device_id that value is the ID;
// otherwise a synthetic ID derived from the transport and address is used.
//
// Sources fall into two transport classes. Hostname and subnet-probe sources
// reach the appliance over a local link and are ClassLocal; mesh sources go
// through the VPN overlay and are ClassRemote. Rank orders descriptors by
// connection quality using that split plus the P2P flag and measured latency.
package device
