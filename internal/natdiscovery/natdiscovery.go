// Package natdiscovery finds a node's public-facing UDP endpoint via STUN
// and creates ICE agents for gathering candidates. It is independent of the
// core event loop and its UDP socket, and the switching engine never
// consults it. The node agent does not call this package: the endpoints a
// node sends in its join message come from its listen port alone.
package natdiscovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/stun/v3"
)

// TURNServer holds TURN relay credentials, used as a last-resort ICE
// candidate type when direct and server-reflexive paths both fail.
type TURNServer struct {
	URL      string
	Username string
	Password string
}

// Discoverer finds a node's public endpoint and gathers ICE candidates.
type Discoverer struct {
	stunServers []string
	turnServers []TURNServer
	log         *slog.Logger
}

// New creates a Discoverer for the given STUN/TURN server set.
func New(stunServers []string, turnServers []TURNServer, log *slog.Logger) *Discoverer {
	return &Discoverer{
		stunServers: stunServers,
		turnServers: turnServers,
		log:         log.With("component", "natdiscovery"),
	}
}

// PublicAddr discovers the node's public-facing address by querying each
// configured STUN server in turn, returning on the first success.
func (d *Discoverer) PublicAddr(ctx context.Context) (*net.UDPAddr, error) {
	if len(d.stunServers) == 0 {
		return nil, fmt.Errorf("no STUN servers configured")
	}

	for _, server := range d.stunServers {
		addr, err := stunBindingRequest(ctx, server)
		if err != nil {
			d.log.Debug("STUN discovery failed", "server", server, "err", err)
			continue
		}
		d.log.Info("discovered public address", "addr", addr, "server", server)
		return addr, nil
	}
	return nil, fmt.Errorf("all STUN servers failed")
}

// NewICEAgent creates a pion/ice agent seeded with the configured STUN and
// TURN URLs, used to gather host/srflx/relay candidates for a node's
// bootstrap endpoint list.
func (d *Discoverer) NewICEAgent() (*ice.Agent, error) {
	urls := make([]*stun.URI, 0, len(d.stunServers)+len(d.turnServers))
	for _, s := range d.stunServers {
		u, err := stun.ParseURI(s)
		if err != nil {
			d.log.Debug("parse STUN URI", "uri", s, "err", err)
			continue
		}
		urls = append(urls, u)
	}
	for _, t := range d.turnServers {
		u, err := stun.ParseURI(t.URL)
		if err != nil {
			d.log.Debug("parse TURN URI", "uri", t.URL, "err", err)
			continue
		}
		u.Username = t.Username
		u.Password = t.Password
		urls = append(urls, u)
	}

	agent, err := ice.NewAgent(&ice.AgentConfig{
		Urls:                urls,
		NetworkTypes:        []ice.NetworkType{ice.NetworkTypeUDP4},
		CandidateTypes:      []ice.CandidateType{ice.CandidateTypeHost, ice.CandidateTypeServerReflexive, ice.CandidateTypeRelay},
		DisconnectedTimeout: ptrDuration(10 * time.Second),
		FailedTimeout:       ptrDuration(30 * time.Second),
		KeepaliveInterval:   ptrDuration(2 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("create ICE agent: %w", err)
	}
	return agent, nil
}

func ptrDuration(d time.Duration) *time.Duration {
	return &d
}

func stunBindingRequest(ctx context.Context, serverAddr string) (*net.UDPAddr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", serverAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.Write(msg.Raw); err != nil {
		return nil, err
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	resp := new(stun.Message)
	resp.Raw = buf[:n]
	if err := resp.Decode(); err != nil {
		return nil, err
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(resp); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}

	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(resp); err != nil {
		return nil, fmt.Errorf("no mapped address in STUN response")
	}
	return &net.UDPAddr{IP: mappedAddr.IP, Port: mappedAddr.Port}, nil
}
