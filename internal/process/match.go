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

/*
Package process implements the domain-matching and result-aggregation
pipeline: the predicate deciding whether a hostname belongs to a target
pattern, per-record extraction of match records from raw API hits,
aggregation of the DNS and certificate result maps, and the wildcard
expansion pass that folds wildcard hostnames into their base domains.
*/

import (
	"strings"

	"github.com/x-stp/censeek/internal/domain"
)

// MatchHostname decides whether hostname is in scope for pattern and, when
// it is, returns the normalized hostname as the canonical key for all
// downstream accumulators.
//
// Both inputs are normalized before comparison. The rules apply in
// priority order:
//
//  1. A wildcard pattern (*.base) matches hostnames exactly one label
//     below base. The base itself never matches, and deeper subdomains
//     do not match.
//  2. A wildcard hostname (as returned in certificate SAN lists) matches
//     when its base equals the pattern or the pattern is a subdomain of
//     that base. If neither holds, the later rules still apply to the
//     wildcard name as a literal string.
//  3. A dotless pattern, or the literal "localhost", matches only exactly.
//     This keeps a bare TLD pattern from matching everything.
//  4. Otherwise, standard suffix match: equal, or ends with "." + pattern.
func MatchHostname(hostname, pattern string) (string, bool) {
	h := domain.NormalizeWildcard(hostname)
	p := domain.NormalizeWildcard(pattern)
	if h == "" || p == "" {
		return "", false
	}

	// Rule 1: wildcard pattern, one level only.
	if strings.HasPrefix(p, domain.WildcardPrefix) {
		base := p[len(domain.WildcardPrefix):]
		if h == base {
			return "", false
		}
		if suffix := "." + base; strings.HasSuffix(h, suffix) {
			prefix := h[:len(h)-len(suffix)]
			if prefix != "" && !strings.Contains(prefix, ".") {
				return h, true
			}
		}
		return "", false
	}

	// Rule 2: wildcard hostname from API data. A miss here is not final.
	if strings.HasPrefix(h, domain.WildcardPrefix) {
		base := h[len(domain.WildcardPrefix):]
		if base == p || strings.HasSuffix(p, "."+base) {
			return h, true
		}
	}

	// Rule 3: dotless or localhost pattern, exact only.
	if !strings.Contains(p, ".") || p == "localhost" {
		if h == p {
			return h, true
		}
		return "", false
	}

	// Rule 4: standard suffix match.
	if h == p || strings.HasSuffix(h, "."+p) {
		return h, true
	}
	return "", false
}
