package identity

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"

	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is used when the pool is configured empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Policy string

const (
	RoundRobin     Policy = "round_robin"
	WeightedRandom Policy = "weighted"
)

// Identity is one outbound request persona. Each identity owns its cookie jar
// so portal sessions (and captcha tokens bound to them) stay consistent. The
// jar is shared by every query using the identity; callers that depend on a
// single pending captcha per session must not overlap attempts on one portal.
type Identity struct {
	Name      string
	UserAgent string
	Proxy     *url.URL
	Jar       http.CookieJar
	Weight    int
}

// Spec describes one identity to build.
type Spec struct {
	UserAgent string
	ProxyURL  string
	Weight    int
}

// Pool hands out identities without blocking.
type Pool struct {
	identities []Identity
	policy     Policy
	counter    atomic.Uint64
	total      int
	fallback   Identity
	intn       func(n int) int
}

// NewPool builds a pool from specs. An empty spec list is valid: Next then
// always returns the default identity.
func NewPool(specs []Spec, policy Policy) (*Pool, error) {
	switch policy {
	case RoundRobin, WeightedRandom:
	case "":
		policy = RoundRobin
	default:
		return nil, fmt.Errorf("unknown identity policy %q", policy)
	}

	p := &Pool{policy: policy, intn: rand.IntN}

	for i, s := range specs {
		id := Identity{
			Name:      fmt.Sprintf("identity-%d", i),
			UserAgent: s.UserAgent,
			Weight:    s.Weight,
		}
		if id.UserAgent == "" {
			id.UserAgent = DefaultUserAgent
		}
		if id.Weight <= 0 {
			id.Weight = 1
		}
		if s.ProxyURL != "" {
			proxy, err := url.Parse(s.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy url %q: %w", s.ProxyURL, err)
			}
			id.Proxy = proxy
		}
		jar, err := newJar()
		if err != nil {
			return nil, err
		}
		id.Jar = jar

		p.identities = append(p.identities, id)
		p.total += id.Weight
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	p.fallback = Identity{Name: "default", UserAgent: DefaultUserAgent, Jar: jar, Weight: 1}

	return p, nil
}

// FromConfig pairs user agents with proxies and weights by index.
func FromConfig(userAgents, proxies []string, weights []int, policy string) (*Pool, error) {
	n := len(userAgents)
	if len(proxies) > n {
		n = len(proxies)
	}

	specs := make([]Spec, 0, n)
	for i := 0; i < n; i++ {
		var s Spec
		if i < len(userAgents) {
			s.UserAgent = userAgents[i]
		} else if len(userAgents) > 0 {
			s.UserAgent = userAgents[i%len(userAgents)]
		}
		if i < len(proxies) {
			s.ProxyURL = proxies[i]
		}
		if i < len(weights) {
			s.Weight = weights[i]
		}
		specs = append(specs, s)
	}

	return NewPool(specs, Policy(policy))
}

// Next returns the next identity according to the pool policy.
func (p *Pool) Next() Identity {
	if len(p.identities) == 0 {
		p.counter.Add(1)
		return p.fallback
	}

	n := p.counter.Add(1) - 1
	if p.policy == WeightedRandom {
		return p.weighted()
	}
	return p.identities[n%uint64(len(p.identities))]
}

// Size reports the number of configured identities.
func (p *Pool) Size() int {
	return len(p.identities)
}

// Rotations reports how many identities have been handed out.
func (p *Pool) Rotations() uint64 {
	return p.counter.Load()
}

func (p *Pool) weighted() Identity {
	pick := p.intn(p.total)
	for _, id := range p.identities {
		if pick < id.Weight {
			return id
		}
		pick -= id.Weight
	}
	return p.identities[len(p.identities)-1]
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}
