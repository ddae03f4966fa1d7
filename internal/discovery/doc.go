// Package discovery advertises and finds vtremote mocks over mDNS.
//
// A running mock registers itself as a "_vtremote._tcp" service in the
// "local." domain. The TXT record describes what a client can expect before
// it connects:
//
//	version=1           VTR1 protocol version
//	codecs=h264,hevc    codecs listed in HELLO_ACK
//	auth=0|1            whether HELLO must carry the configured token
//	max_sessions=4      informational session limit
//
// Browsing keeps only entries with a matching version TXT and at least one
// address.
//
// # Usage Example
//
//	adv, err := discovery.Advertise(cfg, 5555)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	instances, err := discovery.Scan(ctx, 3*time.Second)
//	for _, inst := range instances {
//	    fmt.Println(inst.Name, inst.Addr(), inst.Codecs())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Mocks must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
