package censys

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
	"fmt"
	"time"
)

// Query is a search request against one index: the query string plus the
// field projection to ask for.
type Query struct {
	Index  Index
	Query  string
	Fields []string
}

// hostFields is the projection requested from the hosts index.
var hostFields = []string{"ip", "dns.names", "dns.reverse_dns.names", "last_updated_at"}

// certificateFields is the projection requested from the certificates index.
var certificateFields = []string{"names", "added_at"}

// BuildDNSQuery returns the hosts index query for a domain pattern. Both
// forward names and reverse DNS names are matched. days > 0 restricts
// results to hosts updated within that window.
func BuildDNSQuery(pattern string, days int, now time.Time) Query {
	q := fmt.Sprintf("(dns.names: %s or dns.reverse_dns.names: %s)", pattern, pattern)
	if filter := DateFilter("last_updated_at", days, now); filter != "" {
		q += " and " + filter
	}
	return Query{Index: IndexHosts, Query: q, Fields: hostFields}
}

// BuildCertificateQuery returns the certificates index query for a domain
// pattern. days > 0 restricts results to certificates added within that
// window.
func BuildCertificateQuery(pattern string, days int, now time.Time) Query {
	q := fmt.Sprintf("names: %s", pattern)
	if filter := DateFilter("added_at", days, now); filter != "" {
		q += " and " + filter
	}
	return Query{Index: IndexCertificates, Query: q, Fields: certificateFields}
}

// DateFilter builds an open-ended range clause for a timestamp field,
// cutting off days before now. Returns "" when days <= 0, meaning no
// time restriction.
func DateFilter(field string, days int, now time.Time) string {
	if days <= 0 {
		return ""
	}
	cutoff := now.UTC().AddDate(0, 0, -days)
	return fmt.Sprintf("%s: [%s TO *]", field, cutoff.Format("2006-01-02"))
}
