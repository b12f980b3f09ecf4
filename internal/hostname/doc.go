// Package hostname looks for the appliance at well-known addresses.
//
// Candidates are gathered in priority order:
//
//  1. Fixed addresses the appliance uses when it is the network: the USB
//     gadget link (192.168.7.1) and its own hotspot (10.42.0.1).
//  2. Forward DNS of well-known hostnames (r58.local, r58-studio.local, r58).
//  3. A short mDNS browse for _http._tcp services.
//
// Every candidate must pass a health probe. A hostname that resolves is
// not evidence of an appliance on its own. Each IP is probed at most once
// per Discover call.
package hostname
