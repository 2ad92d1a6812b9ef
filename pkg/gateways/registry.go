// Package gateways is the registry of supported payment providers. The
// checkout orchestrator resolves the user's logical payment service to a
// concrete PG code here before the SDK is ever invoked; an unmapped
// service fails fast instead of opening a broken external redirect.
package gateways

import (
	"encoding/json"
	"os"
	"strings"
)

// Provider describes one supported payment gateway.
type Provider struct {
	Service     string `json:"service"`     // logical name, e.g. KAKAO_PAY
	PGCode      string `json:"pgCode"`      // concrete gateway identifier
	PayMethod   string `json:"payMethod"`   // SDK pay_method value
	DisplayName string `json:"displayName"` // user-facing label
}

// Registry maps logical payment services to providers.
type Registry struct {
	Version   string     `json:"version"`
	Providers []Provider `json:"providers"`

	byService map[string]Provider
}

// builtin is the fixed mapping table shipped with the client.
var builtin = []Provider{
	{Service: "CARD", PGCode: "html5_inicis", PayMethod: "card", DisplayName: "신용/체크카드"},
	{Service: "KAKAO_PAY", PGCode: "kakaopay", PayMethod: "card", DisplayName: "카카오페이"},
	{Service: "TOSS_PAY", PGCode: "tosspay", PayMethod: "card", DisplayName: "토스페이"},
	{Service: "NAVER_PAY", PGCode: "naverpay", PayMethod: "card", DisplayName: "네이버페이"},
	{Service: "PHONE", PGCode: "danal", PayMethod: "phone", DisplayName: "휴대폰 결제"},
}

// Default returns the built-in registry.
func Default() *Registry {
	r := &Registry{Version: "builtin", Providers: builtin}
	r.index()
	return r
}

// Load reads a provider registry override file. Used by deployments that
// roll out gateways independently of the client binary.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	reg.index()
	return &reg, nil
}

func (r *Registry) index() {
	r.byService = make(map[string]Provider, len(r.Providers))
	for _, p := range r.Providers {
		r.byService[p.Service] = p
	}
}

// Resolve maps a logical payment service to its provider. Lookup is
// strict after trimming whitespace: casing differences are treated as
// malformed input, not normalized.
func (r *Registry) Resolve(service string) (Provider, bool) {
	p, ok := r.byService[strings.TrimSpace(service)]
	return p, ok
}

// Services lists the registered logical service names.
func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.Providers))
	for _, p := range r.Providers {
		out = append(out, p.Service)
	}
	return out
}
