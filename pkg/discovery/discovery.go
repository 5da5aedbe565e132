package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Service constants for live data server advertising.
const (
	// ServiceType is the mDNS service type for live data servers.
	ServiceType = "_tickstream._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Config configures advertising and browsing.
type Config struct {
	// InstanceName is the advertised instance name (e.g. the server name).
	InstanceName string

	// Port is the advertised protocol port.
	Port int

	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// Advertiser announces this server on the local network.
type Advertiser struct {
	config Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config Config) *Advertiser {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Advertiser{config: config}
}

// Start registers the mDNS service. Calling Start again re-registers.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{fmt.Sprintf("name=%s", a.config.InstanceName)}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return fmt.Errorf("unknown interface %q: %w", a.config.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	server, err := zeroconf.Register(
		a.config.InstanceName,
		ServiceType,
		Domain,
		a.config.Port,
		txt,
		ifaces,
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement. Safe to call without a prior Start.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Peer is one discovered live data server.
type Peer struct {
	InstanceName string
	Host         string
	Port         int
	Addresses    []string
}

// Addr returns the first "host:port" address for dialing, or empty when
// the peer resolved without addresses.
func (p *Peer) Addr() string {
	if len(p.Addresses) == 0 {
		return ""
	}
	return net.JoinHostPort(p.Addresses[0], fmt.Sprintf("%d", p.Port))
}

// Registry maintains the set of currently visible peer servers.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	self  string
	peers map[string]*Peer
}

// NewRegistry creates a registry. Peers whose instance name equals self
// are ignored so a server does not list itself.
func NewRegistry(self string) *Registry {
	return &Registry{
		self:  self,
		peers: make(map[string]*Peer),
	}
}

// Browse watches the network for peer servers until the context ends.
// It returns immediately; updates apply to the registry in the
// background. Best-effort: a browse failure is returned but the registry
// stays usable (empty).
func (r *Registry) Browse(ctx context.Context) error {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				r.add(entry)
			case entry, ok := <-removed:
				if !ok {
					continue
				}
				r.remove(entry.Instance)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	return nil
}

// add records a discovered peer, merging addresses across interfaces.
func (r *Registry) add(entry *zeroconf.ServiceEntry) {
	if entry.Instance == r.self {
		return
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.peers[entry.Instance]; ok {
		existing.Addresses = mergeAddresses(existing.Addresses, addrs)
		return
	}
	r.peers[entry.Instance] = &Peer{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         entry.Port,
		Addresses:    addrs,
	}
}

// remove drops a peer that disappeared.
func (r *Registry) remove(instance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, instance)
}

// Servers returns the currently visible peer instance names, sorted.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Peers returns a snapshot of the currently visible peers.
func (r *Registry) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// mergeAddresses combines two address lists without duplicates.
func mergeAddresses(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, addr := range a {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	for _, addr := range b {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
