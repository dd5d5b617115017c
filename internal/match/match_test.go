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
	"testing"

	"github.com/x-stp/censeek/internal/domain"
)

func mustDomain(t *testing.T, s string) domain.Domain {
	t.Helper()
	d, err := domain.ParseWildcard(s)
	if err != nil {
		t.Fatalf("ParseWildcard(%q): %v", s, err)
	}
	return d
}

func TestTypeSetOperations(t *testing.T) {
	t.Parallel()

	s := NewTypeSet(TypeForward)
	if !s.Has(TypeForward) {
		t.Fatal("expected forward tag after construction")
	}
	if s.Has(TypeReverse) {
		t.Fatal("unexpected reverse tag")
	}

	s.Add(TypeReverse)
	s.Add(TypeReverse)
	if len(s) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(s))
	}

	other := NewTypeSet(TypeCertificate)
	s.Update(other)
	got := s.Slice()
	want := []string{TypeCertificate, TypeForward, TypeReverse}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	clone := s.Clone()
	clone.Add("extra")
	if s.Has("extra") {
		t.Error("Clone() shares storage with original")
	}
	if !s.Equal(NewTypeSet(TypeForward, TypeReverse, TypeCertificate)) {
		t.Error("Equal() false for identical sets")
	}
	if s.Equal(clone) {
		t.Error("Equal() true for differing sets")
	}
}

func TestMatchValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		build      func(t *testing.T) *Match
		wantIssues int
	}{
		{
			name: "Valid DNS match",
			build: func(t *testing.T) *Match {
				m := NewDNS(mustDomain(t, "www.example.com"))
				m.Types.Add(TypeForward)
				m.IP = "192.0.2.1"
				return m
			},
		},
		{
			name: "Valid certificate match",
			build: func(t *testing.T) *Match {
				m := NewCertificate(mustDomain(t, "api.example.com"))
				m.Types.Add(TypeCertificate)
				m.AddedAt = "2025-01-02T03:04:05Z"
				return m
			},
		},
		{
			name: "IPv6 address accepted",
			build: func(t *testing.T) *Match {
				m := NewDNS(mustDomain(t, "v6.example.com"))
				m.IP = "2001:db8::1"
				return m
			},
		},
		{
			name: "Malformed IP",
			build: func(t *testing.T) *Match {
				m := NewDNS(mustDomain(t, "bad.example.com"))
				m.IP = "not-an-ip"
				return m
			},
			wantIssues: 1,
		},
		{
			name: "Unknown kind and empty source",
			build: func(t *testing.T) *Match {
				m := NewDNS(mustDomain(t, "x.example.com"))
				m.Kind = Kind("banana")
				m.Source = ""
				return m
			},
			wantIssues: 2,
		},
		{
			name: "Zero hostname",
			build: func(t *testing.T) *Match {
				return NewDNS(domain.Domain{})
			},
			wantIssues: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := tt.build(t).Validate()
			if len(issues) != tt.wantIssues {
				t.Errorf("Validate() = %v, want %d issues", issues, tt.wantIssues)
			}
		})
	}
}

func TestMatchCloneIsDeep(t *testing.T) {
	t.Parallel()

	m := NewDNS(mustDomain(t, "www.example.com"))
	m.Types.Add(TypeForward)
	m.IP = "192.0.2.1"
	m.LastUpdatedAt = "2025-01-01T00:00:00Z"

	c := m.Clone()
	c.Types.Add(TypeReverse)
	c.IP = "198.51.100.7"

	if m.Types.Has(TypeReverse) {
		t.Error("Clone() shares type set with original")
	}
	if m.IP != "192.0.2.1" {
		t.Errorf("original IP mutated to %s", m.IP)
	}
	if !m.Equal(m.Clone()) {
		t.Error("Equal() false for fresh clone")
	}
	if m.Equal(c) {
		t.Error("Equal() true after divergence")
	}
}

func TestSourceKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(t *testing.T) *Match
		want  []Kind
	}{
		{
			name: "Pure DNS",
			build: func(t *testing.T) *Match {
				m := NewDNS(mustDomain(t, "a.example.com"))
				m.Types.Add(TypeForward)
				return m
			},
			want: []Kind{KindDNS},
		},
		{
			name: "Pure certificate",
			build: func(t *testing.T) *Match {
				m := NewCertificate(mustDomain(t, "b.example.com"))
				m.Types.Add(TypeCertificate)
				m.AddedAt = "2025-01-01T00:00:00Z"
				return m
			},
			want: []Kind{KindCertificate},
		},
		{
			name: "Merged via DNS metadata",
			build: func(t *testing.T) *Match {
				m := NewCertificate(mustDomain(t, "c.example.com"))
				m.Types.Add(TypeCertificate)
				m.AddedAt = "2025-01-01T00:00:00Z"
				m.IP = "192.0.2.9"
				return m
			},
			want: []Kind{KindDNS, KindCertificate},
		},
		{
			name: "Merged via type tags",
			build: func(t *testing.T) *Match {
				m := NewCertificate(mustDomain(t, "d.example.com"))
				m.Types.Add(TypeCertificate)
				m.Types.Add(TypeForward)
				return m
			},
			want: []Kind{KindDNS, KindCertificate},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.build(t).SourceKinds()
			if len(got) != len(tt.want) {
				t.Fatalf("SourceKinds() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("SourceKinds()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
