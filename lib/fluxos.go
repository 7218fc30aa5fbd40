// Package lib wires the authentication engine, the config-sync authorizer,
// and their collaborators into the administrative HTTP surface of the agent.
package lib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/gaissmai/bart"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/lib/challenge"
	"github.com/fluxnode/fluxosd/lib/configsync"
)

var (
	configSyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxosd_config_syncs_total",
		Help: "The total number of accepted configuration syncs",
	})

	adminRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxosd_admin_rejections_total",
		Help: "Administrative requests rejected before reaching the engine",
	}, []string{"cause"})
)

// HeightSource supplies the chain height bound into each issued challenge.
// The engine treats the value as opaque.
type HeightSource interface {
	BlockCount(ctx context.Context) (int64, error)
}

type Options struct {
	Keeper     *challenge.Keeper
	Verifier   *challenge.Verifier
	ConfigSync *configsync.Syncer
	Heights    HeightSource

	// ArcaneMode gates the whole administrative API. When the node is not
	// running in arcane mode every endpoint answers 501.
	ArcaneMode bool

	// AdminAllow restricts which source networks may administer this
	// node. Empty means no restriction.
	AdminAllow []netip.Prefix
}

type Server struct {
	opts       Options
	mux        *http.ServeMux
	adminAllow *bart.Table[struct{}]
}

func New(opts Options) (*Server, error) {
	var missing []error
	if opts.Keeper == nil {
		missing = append(missing, errors.New("lib: Options.Keeper is required"))
	}
	if opts.Verifier == nil {
		missing = append(missing, errors.New("lib: Options.Verifier is required"))
	}
	if opts.ConfigSync == nil {
		missing = append(missing, errors.New("lib: Options.ConfigSync is required"))
	}
	if opts.Heights == nil {
		missing = append(missing, errors.New("lib: Options.Heights is required"))
	}
	if len(missing) != 0 {
		return nil, errors.Join(missing...)
	}

	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
	}

	if len(opts.AdminAllow) > 0 {
		s.adminAllow = &bart.Table[struct{}]{}
		for _, pfx := range opts.AdminAllow {
			s.adminAllow.Insert(pfx, struct{}{})
		}
	}

	s.mux.HandleFunc(fmt.Sprintf("GET %s/authchallenge", fluxosd.BasePrefix), s.AuthChallenge)
	s.mux.HandleFunc(fmt.Sprintf("POST %s/configsync", fluxosd.BasePrefix), s.ConfigSync)
	s.mux.HandleFunc(fmt.Sprintf("GET %s/healthz", fluxosd.BasePrefix), s.Healthz)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// allowed checks the requester against the admin allowlist, if one is set.
func (s *Server) allowed(ip string) bool {
	if s.adminAllow == nil {
		return true
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	_, ok := s.adminAllow.Lookup(addr)
	return ok
}
