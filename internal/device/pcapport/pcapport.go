// Package pcapport is the internal/device.Device backing a read-only
// PORT! opened against a "pcapport://" scheme: each Read hands back one
// captured frame as a byte-stream value, the live implementation the
// earlier placeholder capture code left ticking without a real decode
// path, now wired to gopacket and gopacket/pcap for real.
package pcapport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"rebolcore/internal/device"
)

// ConnectSpec is req.Extra for Connect: the handle ID later Read/Poll/
// Close calls use, the interface to capture on, a BPF filter
// expression (empty means capture everything), and the usual
// pcap.OpenLive knobs.
type ConnectSpec struct {
	ID        string
	Interface string
	Filter    string
	Snaplen   int32
	Promisc   bool
	Timeout   time.Duration
}

// Info is the per-packet summary Read leaves in req.Extra alongside
// the raw bytes in req.Data: timestamp, length, addresses, ports, and
// protocol, decoded through gopacket's layer parser instead of
// hand-rolled header offsets.
type Info struct {
	Timestamp time.Time
	Length    int
	SrcIP     string
	DstIP     string
	SrcPort   int
	DstPort   int
	Protocol  string
}

type session struct {
	handle  *pcap.Handle
	packets chan gopacket.Packet
	done    chan struct{}
}

// Port is one pcapport device instance, pooling open capture sessions
// by caller-chosen handle ID the same way dbport pools connections.
type Port struct {
	device.Base
	mu       sync.RWMutex
	sessions map[string]*session
}

// New returns an empty pcapport device.
func New() *Port {
	return &Port{Base: device.Base{Name: "pcapport"}, sessions: make(map[string]*session)}
}

func defaultSpec(spec ConnectSpec) ConnectSpec {
	if spec.Snaplen <= 0 {
		spec.Snaplen = 65535
	}
	if spec.Timeout <= 0 {
		spec.Timeout = pcap.BlockForever
	}
	return spec
}

// Connect opens a live capture handle on req.Extra.(ConnectSpec) and
// starts a background goroutine feeding decoded packets into a
// buffered channel, so Read never blocks the caller inside gopacket's
// own blocking Packets() loop.
func (p *Port) Connect(req *device.Request) error {
	spec, ok := req.Extra.(ConnectSpec)
	if !ok {
		return device.Unsupported("pcapport", "connect without a ConnectSpec")
	}
	spec = defaultSpec(spec)

	handle, err := pcap.OpenLive(spec.Interface, spec.Snaplen, spec.Promisc, spec.Timeout)
	if err != nil {
		return fmt.Errorf("pcapport: open %s failed: %w", spec.Interface, err)
	}
	if spec.Filter != "" {
		if err := handle.SetBPFFilter(spec.Filter); err != nil {
			handle.Close()
			return fmt.Errorf("pcapport: bad filter %q: %w", spec.Filter, err)
		}
	}

	sess := &session{
		handle:  handle,
		packets: make(chan gopacket.Packet, 256),
		done:    make(chan struct{}),
	}
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	go func() {
		defer close(sess.packets)
		for {
			select {
			case <-sess.done:
				return
			case pkt, ok := <-source.Packets():
				if !ok {
					return
				}
				select {
				case sess.packets <- pkt:
				default:
					<-sess.packets
					sess.packets <- pkt
				}
			}
		}
	}()

	p.mu.Lock()
	p.sessions[spec.ID] = sess
	p.mu.Unlock()
	req.Flags |= device.FlagOpen
	return nil
}

// Open is an alias for Connect.
func (p *Port) Open(req *device.Request) error { return p.Connect(req) }

func (p *Port) getSession(id string) (*session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("pcapport: no open capture %q", id)
	}
	return s, nil
}

// Close stops the background reader and releases the pcap handle
// named by req.Extra.(string).
func (p *Port) Close(req *device.Request) error {
	id, _ := req.Extra.(string)
	p.mu.Lock()
	s, ok := p.sessions[id]
	if ok {
		delete(p.sessions, id)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("pcapport: no open capture %q", id)
	}
	close(s.done)
	s.handle.Close()
	req.Flags &^= device.FlagOpen
	return nil
}

// Read waits for the next captured frame on req.Extra.(string)'s
// session, placing its raw bytes in req.Data and a decoded Info in
// req.Extra.
func (p *Port) Read(req *device.Request) error {
	id, _ := req.Extra.(string)
	s, err := p.getSession(id)
	if err != nil {
		return err
	}
	pkt, ok := <-s.packets
	if !ok {
		return fmt.Errorf("pcapport: capture %q ended", id)
	}
	req.Data = pkt.Data()
	req.Actual = len(req.Data)
	req.Extra = decode(pkt)
	return nil
}

// Poll reports (via req.Actual: 1 or 0) whether a packet is already
// buffered without consuming it.
func (p *Port) Poll(req *device.Request) error {
	id, _ := req.Extra.(string)
	s, err := p.getSession(id)
	if err != nil {
		return err
	}
	if len(s.packets) > 0 {
		req.Actual = 1
	} else {
		req.Actual = 0
	}
	return nil
}

// decode pulls an address/port/protocol summary out of gopacket's
// parsed layers, favoring whichever transport
// layer (TCP or UDP) is present over the raw IP protocol number.
func decode(pkt gopacket.Packet) Info {
	info := Info{Timestamp: pkt.Metadata().Timestamp, Length: pkt.Metadata().Length}

	if ipLayer := pkt.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv4)
		info.SrcIP = ipAddrString(ip.SrcIP)
		info.DstIP = ipAddrString(ip.DstIP)
		info.Protocol = ip.Protocol.String()
	} else if ipLayer := pkt.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv6)
		info.SrcIP = ipAddrString(ip.SrcIP)
		info.DstIP = ipAddrString(ip.DstIP)
		info.Protocol = ip.NextHeader.String()
	}

	if tcp := pkt.Layer(layers.LayerTypeTCP); tcp != nil {
		t, _ := tcp.(*layers.TCP)
		info.SrcPort = int(t.SrcPort)
		info.DstPort = int(t.DstPort)
		info.Protocol = "TCP"
	} else if udp := pkt.Layer(layers.LayerTypeUDP); udp != nil {
		u, _ := udp.(*layers.UDP)
		info.SrcPort = int(u.SrcPort)
		info.DstPort = int(u.DstPort)
		info.Protocol = "UDP"
	}

	return info
}

func ipAddrString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
