package state

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/cilium/cilium/pkg/ip"
	"github.com/goccy/go-yaml"
)

// LocalCfg represents node-level configuration
type LocalCfg struct {
	Id       RouterId       // unique id for this router
	Announce []netip.Prefix `yaml:",omitempty"`          // prefixes originated by this router
	LogPath  string         `yaml:"log_path,omitempty"`  // if not empty, weft will also write logs to this file
	Verbose  bool           `yaml:"verbose,omitempty"`   // enable debug logging
}

func LoadLocalCfg(path string) (*LocalCfg, error) {
	var cfg LocalCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LocalCfgValidator(cfg *LocalCfg) error {
	if cfg.Id == "" {
		return fmt.Errorf("router id must not be empty")
	}
	for _, p := range cfg.Announce {
		if !p.IsValid() {
			return fmt.Errorf("invalid announced prefix: %s", p)
		}
		if p != p.Masked() {
			return fmt.Errorf("announced prefix %s has host bits set, expected %s", p, p.Masked())
		}
	}
	cfg.Announce = CoalescePrefix(cfg.Announce)
	return nil
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, _ := n.Mask.Size()
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}

func CoalescePrefix(prefixes []netip.Prefix) []netip.Prefix {
	ipv4, ipv6 := ip.CoalesceCIDRs(toIPNets(prefixes))
	return fromIPNets(append(ipv4, ipv6...))
}
