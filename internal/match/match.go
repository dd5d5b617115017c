package match

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
Package match defines the per-hostname result record produced by the
discovery pipeline.

A Match is a closed tagged record: the Kind field says whether the record is
primarily DNS-sourced or certificate-sourced, and both flavors of metadata
live in explicit optional fields. A hostname observed in both sources is a
certificate-kind record whose DNS fields are also populated, so every merge
site can switch exhaustively on the two kinds.
*/

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/x-stp/censeek/internal/domain"
)

// Kind discriminates the two match record flavors.
type Kind string

const (
	// KindDNS marks a record built from host/DNS search results.
	KindDNS Kind = "dns"
	// KindCertificate marks a record built from certificate search results.
	KindCertificate Kind = "certificate"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool { return k == KindDNS || k == KindCertificate }

// Type tags attached to matches during extraction.
const (
	TypeForward     = "forward"
	TypeReverse     = "reverse"
	TypeCertificate = "certificate"
)

// DefaultSource identifies where match data came from unless overridden.
const DefaultSource = "censys"

// TypeSet is a set of type tags.
type TypeSet map[string]struct{}

// NewTypeSet builds a set from the given tags.
func NewTypeSet(tags ...string) TypeSet {
	s := make(TypeSet, len(tags))
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
	return s
}

// Add inserts a tag.
func (s TypeSet) Add(tag string) { s[tag] = struct{}{} }

// Has reports membership.
func (s TypeSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Update adds every tag from other into s.
func (s TypeSet) Update(other TypeSet) {
	for tag := range other {
		s[tag] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	for tag := range s {
		out[tag] = struct{}{}
	}
	return out
}

// Slice returns the tags sorted for deterministic output.
func (s TypeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two sets hold the same tags.
func (s TypeSet) Equal(other TypeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for tag := range s {
		if !other.Has(tag) {
			return false
		}
	}
	return true
}

// Match is one per-hostname discovery record.
//
// LastUpdatedAt and IP carry DNS metadata; AddedAt carries certificate
// metadata. For a pure record of either kind only its own fields are set;
// a merged record (hostname seen in both sources) is certificate-kind with
// the DNS fields retained.
type Match struct {
	Hostname      domain.Domain
	Kind          Kind
	Types         TypeSet
	LastUpdatedAt string
	IP            string
	AddedAt       string
	Source        string
}

// NewDNS returns an empty DNS-kind match for a hostname.
func NewDNS(hostname domain.Domain) *Match {
	return &Match{
		Hostname: hostname,
		Kind:     KindDNS,
		Types:    NewTypeSet(),
		Source:   DefaultSource,
	}
}

// NewCertificate returns an empty certificate-kind match for a hostname.
func NewCertificate(hostname domain.Domain) *Match {
	return &Match{
		Hostname: hostname,
		Kind:     KindCertificate,
		Types:    NewTypeSet(),
		Source:   DefaultSource,
	}
}

// ipv4Pattern is a shape check, not a range check: four dotted decimal runs.
var ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// Validate returns human-readable issues with the record, empty when valid.
func (m *Match) Validate() []string {
	var issues []string
	if m.Hostname.IsZero() {
		issues = append(issues, "hostname must be a valid domain")
	}
	if !m.Kind.Valid() {
		issues = append(issues, fmt.Sprintf("unknown match kind: %q", m.Kind))
	}
	if m.IP != "" && !ipv4Pattern.MatchString(m.IP) && !strings.Contains(m.IP, ":") {
		issues = append(issues, fmt.Sprintf("invalid IP format: %s", m.IP))
	}
	if m.Source == "" {
		issues = append(issues, "source must be a non-empty string")
	}
	return issues
}

// Clone returns a deep copy of the record.
func (m *Match) Clone() *Match {
	out := *m
	out.Types = m.Types.Clone()
	return &out
}

// Rekey returns a copy of the record keyed to a different hostname.
func (m *Match) Rekey(hostname domain.Domain) *Match {
	out := m.Clone()
	out.Hostname = hostname
	return out
}

// Equal compares every field, with set semantics for the type tags.
func (m *Match) Equal(other *Match) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Hostname == other.Hostname &&
		m.Kind == other.Kind &&
		m.Types.Equal(other.Types) &&
		m.LastUpdatedAt == other.LastUpdatedAt &&
		m.IP == other.IP &&
		m.AddedAt == other.AddedAt &&
		m.Source == other.Source
}

// SourceKinds reports which sources contributed to the record. A
// certificate-kind record that retained DNS metadata or DNS type tags counts
// for both.
func (m *Match) SourceKinds() []Kind {
	switch m.Kind {
	case KindDNS:
		return []Kind{KindDNS}
	case KindCertificate:
		if m.LastUpdatedAt != "" || m.IP != "" || m.Types.Has(TypeForward) || m.Types.Has(TypeReverse) {
			return []Kind{KindDNS, KindCertificate}
		}
		return []Kind{KindCertificate}
	}
	return nil
}
