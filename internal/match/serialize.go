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

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/x-stp/censeek/internal/domain"
)

// Format selects the serialization shape for match collections.
type Format string

const (
	// FormatFlat emits one object per match keyed by hostname fields.
	FormatFlat Format = "flat"
	// FormatUnified emits one object per hostname with a sources list.
	FormatUnified Format = "unified"
)

// ErrInvalidFormat reports an unrecognized serialization format name.
var ErrInvalidFormat = errors.New("unknown serialization format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatFlat, FormatUnified:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// MarshalJSON emits the per-kind wire shape. DNS records always carry
// last_updated_at and ip keys (null when unknown); certificate records always
// carry added_at and include the DNS keys only when a merge populated them.
func (m *Match) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"hostname": map[string]string{"name": m.Hostname.Name()},
		"kind":     string(m.Kind),
		"types":    m.Types.Slice(),
		"source":   m.Source,
	}
	switch m.Kind {
	case KindCertificate:
		if m.AddedAt != "" {
			out["added_at"] = m.AddedAt
		} else {
			out["added_at"] = nil
		}
		if m.LastUpdatedAt != "" {
			out["last_updated_at"] = m.LastUpdatedAt
		}
		if m.IP != "" {
			out["ip"] = m.IP
		}
	default:
		if m.LastUpdatedAt != "" {
			out["last_updated_at"] = m.LastUpdatedAt
		} else {
			out["last_updated_at"] = nil
		}
		if m.IP != "" {
			out["ip"] = m.IP
		} else {
			out["ip"] = nil
		}
	}
	return json.Marshal(out)
}

// matchWire is the superset of fields either kind can carry on the wire.
// Domain is an alternate hostname key used by unified entries.
type matchWire struct {
	Hostname      json.RawMessage `json:"hostname"`
	Domain        json.RawMessage `json:"domain"`
	Types         []string        `json:"types"`
	LastUpdatedAt *string         `json:"last_updated_at"`
	IP            *string         `json:"ip"`
	AddedAt       *string         `json:"added_at"`
	Source        string          `json:"source"`
	Kind          string          `json:"kind"`
}

// UnmarshalJSON accepts the wire shape produced by MarshalJSON, plus two
// lenient historical variants: the hostname may be a bare string or an
// object with a name key (under either a hostname or a domain key), and
// when no kind tag is present the kind is inferred from the presence of
// added_at.
func (m *Match) UnmarshalJSON(data []byte) error {
	var w matchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	raw := w.Hostname
	if len(raw) == 0 {
		raw = w.Domain
	}
	name, err := decodeHostname(raw)
	if err != nil {
		return err
	}
	hostname, err := domain.ParseWildcard(name)
	if err != nil {
		return fmt.Errorf("match record: %w", err)
	}

	kind := Kind(w.Kind)
	if w.Kind == "" {
		if w.AddedAt != nil {
			kind = KindCertificate
		} else {
			kind = KindDNS
		}
	}
	if !kind.Valid() {
		return fmt.Errorf("match record: unknown kind %q", w.Kind)
	}

	m.Hostname = hostname
	m.Kind = kind
	m.Types = NewTypeSet(w.Types...)
	m.LastUpdatedAt = stringOrEmpty(w.LastUpdatedAt)
	m.IP = stringOrEmpty(w.IP)
	m.AddedAt = stringOrEmpty(w.AddedAt)
	m.Source = w.Source
	if m.Source == "" {
		m.Source = DefaultSource
	}
	return nil
}

func decodeHostname(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("match record: missing hostname field")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name, nil
	}
	return "", fmt.Errorf("match record: hostname field must be a string or an object with a name")
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SerializeFlat returns the matches sorted by hostname, one record each.
func SerializeFlat(matches map[string]*Match) []*Match {
	keys := make([]string, 0, len(matches))
	for k := range matches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Match, 0, len(keys))
	for _, k := range keys {
		out = append(out, matches[k])
	}
	return out
}

// UnifiedEntry is one hostname with every source that reported it.
type UnifiedEntry struct {
	Domain        string   `json:"domain"`
	Sources       []string `json:"sources"`
	Types         []string `json:"type"`
	LastUpdatedAt string   `json:"last_updated_at,omitempty"`
	IP            string   `json:"ip,omitempty"`
	AddedAt       string   `json:"added_at,omitempty"`
}

// SerializeUnified collapses matches into per-hostname entries with a
// derived sources list, sorted by hostname.
func SerializeUnified(matches map[string]*Match) []UnifiedEntry {
	out := make([]UnifiedEntry, 0, len(matches))
	for _, m := range SerializeFlat(matches) {
		kinds := m.SourceKinds()
		sources := make([]string, 0, len(kinds))
		for _, k := range kinds {
			sources = append(sources, string(k))
		}
		out = append(out, UnifiedEntry{
			Domain:        m.Hostname.Name(),
			Sources:       sources,
			Types:         m.Types.Slice(),
			LastUpdatedAt: m.LastUpdatedAt,
			IP:            m.IP,
			AddedAt:       m.AddedAt,
		})
	}
	return out
}
