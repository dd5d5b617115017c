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
	"sort"

	"github.com/x-stp/censeek/internal/match"
	"github.com/x-stp/censeek/internal/metrics"
)

// ExpandWildcards folds wildcard-hostname entries into their base-domain
// entries. The output never contains a wildcard key, except for degenerate
// wildcards whose base cannot be extracted; those are kept unmodified with
// a warning rather than dropped.
//
// Merging a wildcard record into an existing base entry of the same kind
// unions the type tags, keeps the later timestamp, and backfills a missing
// IP. When the kinds differ, the two records are combined the same way
// aggregation combines cross-source entries, so neither side's tags or
// timestamps are lost.
func ExpandWildcards(in map[string]*match.Match) map[string]*match.Match {
	out := make(map[string]*match.Match, len(in))
	wildcards := make(map[string]*match.Match)

	// Pass 1: partition.
	for key, m := range in {
		if !m.Hostname.IsWildcard() {
			out[key] = m.Clone()
			continue
		}
		if _, ok := m.Hostname.Base(); !ok {
			log.Printf("Keeping degenerate wildcard entry %q: no base domain", key)
			out[key] = m.Clone()
			continue
		}
		wildcards[key] = m
	}

	// Pass 2: fold wildcards into their bases, in sorted order so repeated
	// runs produce identical results.
	keys := make([]string, 0, len(wildcards))
	for key := range wildcards {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		w := wildcards[key]
		base, _ := w.Hostname.Base()
		baseKey := base.Name()
		metrics.GetMetrics().WildcardsExpandedTotal.WithLabelValues(string(w.Kind)).Inc()

		existing, ok := out[baseKey]
		if !ok {
			out[baseKey] = w.Rekey(base)
			continue
		}

		switch {
		case existing.Kind == w.Kind && w.Kind == match.KindDNS:
			existing.Types.Update(w.Types)
			existing.LastUpdatedAt = laterOf(existing.LastUpdatedAt, w.LastUpdatedAt)
			if existing.IP == "" {
				existing.IP = w.IP
			}
		case existing.Kind == w.Kind: // both certificate
			existing.Types.Update(w.Types)
			existing.AddedAt = laterOf(existing.AddedAt, w.AddedAt)
			existing.LastUpdatedAt = laterOf(existing.LastUpdatedAt, w.LastUpdatedAt)
			if existing.IP == "" {
				existing.IP = w.IP
			}
		case existing.Kind == match.KindDNS: // wildcard is certificate
			out[baseKey] = mergeDNSWithCertificate(existing, w.Rekey(base))
		default: // existing certificate, wildcard is DNS
			out[baseKey] = mergeDNSWithCertificate(w.Rekey(base), existing)
		}
	}
	return out
}
