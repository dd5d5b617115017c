package process

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"log"

	"github.com/x-stp/censeek/internal/censys"
	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/match"
	"github.com/x-stp/censeek/internal/metrics"
)

// ExtractDNS walks one hosts index hit and returns a match record for every
// forward or reverse name that is in scope for pattern. Hosts without a DNS
// block yield nothing. Matched names that fail domain construction are
// skipped with a warning rather than aborting the record.
func ExtractDNS(rec censys.HostResult, pattern string) []*match.Match {
	if rec.DNS == nil {
		return nil
	}

	var out []*match.Match
	collect := func(names []string, tag string) {
		for _, name := range names {
			matched, ok := MatchHostname(name, pattern)
			if !ok {
				continue
			}
			d, err := domain.ParseWildcard(matched)
			if err != nil {
				log.Printf("Skipping invalid matched hostname %q: %v", matched, err)
				metrics.GetMetrics().InvalidDomainsTotal.WithLabelValues(string(match.KindDNS)).Inc()
				continue
			}
			m := match.NewDNS(d)
			m.Types.Add(tag)
			m.LastUpdatedAt = rec.LastUpdatedAt
			m.IP = rec.IP
			out = append(out, m)
		}
	}

	collect(rec.DNS.Names, match.TypeForward)
	if rec.DNS.ReverseDNS != nil {
		collect(rec.DNS.ReverseDNS.Names, match.TypeReverse)
	}
	return out
}

// ExtractCertificate walks one certificates index hit and returns a match
// record for every in-scope name. Certificate name lists include the common
// name and all SANs, which may themselves be wildcards.
func ExtractCertificate(rec censys.CertificateResult, pattern string) []*match.Match {
	var out []*match.Match
	for _, name := range rec.Names {
		matched, ok := MatchHostname(name, pattern)
		if !ok {
			continue
		}
		d, err := domain.ParseWildcard(matched)
		if err != nil {
			log.Printf("Skipping invalid matched hostname %q: %v", matched, err)
			metrics.GetMetrics().InvalidDomainsTotal.WithLabelValues(string(match.KindCertificate)).Inc()
			continue
		}
		m := match.NewCertificate(d)
		m.Types.Add(match.TypeCertificate)
		m.AddedAt = rec.AddedAt
		out = append(out, m)
	}
	return out
}

// Accumulator folds extracted match records into a running result map,
// one entry per hostname. The fold rules depend on both record kinds:
//
//   - dns onto dns: union type tags, backfill timestamp and IP if unset.
//   - certificate onto certificate: union type tags, backfill added_at.
//   - dns onto certificate: union type tags into the certificate record and
//     backfill the DNS metadata fields.
//   - certificate onto dns: the certificate record replaces the DNS entry
//     wholesale. Cross-source merging is deferred to aggregation, which
//     sees complete per-source maps.
type Accumulator struct {
	matches map[string]*match.Match
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{matches: make(map[string]*match.Match)}
}

// Add folds one extracted record into the accumulator.
func (a *Accumulator) Add(m *match.Match) {
	key := m.Hostname.Name()
	existing, ok := a.matches[key]
	if !ok {
		a.matches[key] = m.Clone()
		metrics.GetMetrics().MatchesFoundTotal.WithLabelValues(string(m.Kind)).Inc()
		return
	}

	switch {
	case m.Kind == match.KindDNS && existing.Kind == match.KindDNS:
		existing.Types.Update(m.Types)
		if existing.LastUpdatedAt == "" {
			existing.LastUpdatedAt = m.LastUpdatedAt
		}
		if existing.IP == "" {
			existing.IP = m.IP
		}
	case m.Kind == match.KindCertificate && existing.Kind == match.KindCertificate:
		existing.Types.Update(m.Types)
		if existing.AddedAt == "" {
			existing.AddedAt = m.AddedAt
		}
	case m.Kind == match.KindDNS && existing.Kind == match.KindCertificate:
		existing.Types.Update(m.Types)
		if existing.LastUpdatedAt == "" {
			existing.LastUpdatedAt = m.LastUpdatedAt
		}
		if existing.IP == "" {
			existing.IP = m.IP
		}
	default: // certificate onto dns
		a.matches[key] = m.Clone()
	}
}

// AddAll folds a batch of extracted records.
func (a *Accumulator) AddAll(ms []*match.Match) {
	for _, m := range ms {
		a.Add(m)
	}
}

// Matches returns the accumulated result map. The map is the accumulator's
// own storage; callers that keep accumulating must not hold onto it.
func (a *Accumulator) Matches() map[string]*match.Match {
	return a.matches
}

// Len returns the number of distinct hostnames accumulated.
func (a *Accumulator) Len() int {
	return len(a.matches)
}
