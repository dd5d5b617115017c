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

import "github.com/x-stp/censeek/internal/match"

// Aggregate merges the per-source result maps into one map with a single
// entry per hostname. Either input may be nil. A hostname present only in
// one source keeps its record unchanged; a hostname present in both becomes
// a certificate-kind record carrying the union of type tags and both sets
// of timestamp metadata.
func Aggregate(dnsMap, certMap map[string]*match.Match) map[string]*match.Match {
	combined := make(map[string]*match.Match, len(dnsMap)+len(certMap))
	for key, m := range dnsMap {
		combined[key] = m.Clone()
	}

	for key, c := range certMap {
		existing, ok := combined[key]
		if !ok {
			combined[key] = c.Clone()
			continue
		}
		switch existing.Kind {
		case match.KindCertificate:
			existing.Types.Update(c.Types)
			if existing.AddedAt == "" {
				existing.AddedAt = c.AddedAt
			}
		default: // DNS entry superseded by a merged record
			combined[key] = mergeDNSWithCertificate(existing, c)
		}
	}
	return combined
}

// mergeDNSWithCertificate combines a DNS-kind and a certificate-kind record
// for the same hostname into one certificate-kind record that keeps both
// sets of metadata. The result is keyed to the DNS record's hostname.
//
// Timestamps are ISO-8601 strings, so "later of" is a plain string
// comparison.
func mergeDNSWithCertificate(d, c *match.Match) *match.Match {
	m := match.NewCertificate(d.Hostname)
	m.Types.Update(d.Types)
	m.Types.Update(c.Types)
	m.AddedAt = firstNonEmpty(c.AddedAt, d.AddedAt)
	m.LastUpdatedAt = laterOf(d.LastUpdatedAt, c.LastUpdatedAt)
	m.IP = firstNonEmpty(d.IP, c.IP)
	m.Source = d.Source
	return m
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func laterOf(a, b string) string {
	if a > b {
		return a
	}
	return b
}
