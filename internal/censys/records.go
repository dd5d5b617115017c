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

import "encoding/json"

// Index names the two Censys search indexes the tool queries.
type Index string

const (
	// IndexHosts is the hosts index, queried for forward and reverse DNS names.
	IndexHosts Index = "hosts"
	// IndexCertificates is the certificates index, queried for certificate names.
	IndexCertificates Index = "certificates"
)

// HostResult is one hit from the hosts index, reduced to the fields the
// search requests via its field list.
type HostResult struct {
	IP            string   `json:"ip"`
	DNS           *HostDNS `json:"dns,omitempty"`
	LastUpdatedAt string   `json:"last_updated_at"`
}

// HostDNS holds the DNS name groups attached to a host.
type HostDNS struct {
	Names      []string    `json:"names,omitempty"`
	ReverseDNS *ReverseDNS `json:"reverse_dns,omitempty"`
}

// ReverseDNS holds hostnames learned from PTR lookups.
type ReverseDNS struct {
	Names []string `json:"names,omitempty"`
}

// CertificateResult is one hit from the certificates index, reduced to the
// requested fields.
type CertificateResult struct {
	Names   []string `json:"names"`
	AddedAt string   `json:"added_at"`
}

// DecodeHostResult parses a raw hosts index hit.
func DecodeHostResult(raw json.RawMessage) (HostResult, error) {
	var r HostResult
	err := json.Unmarshal(raw, &r)
	return r, err
}

// DecodeCertificateResult parses a raw certificates index hit.
func DecodeCertificateResult(raw json.RawMessage) (CertificateResult, error) {
	var r CertificateResult
	err := json.Unmarshal(raw, &r)
	return r, err
}

// searchResponse is the v2 search API envelope.
type searchResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Result struct {
		Query string            `json:"query"`
		Total int64             `json:"total"`
		Hits  []json.RawMessage `json:"hits"`
		Links struct {
			Next string `json:"next"`
			Prev string `json:"prev"`
		} `json:"links"`
	} `json:"result"`
	Error string `json:"error"`
}

// AccountInfo is the subset of the account endpoint response the tool shows.
type AccountInfo struct {
	Email string `json:"email"`
	Login string `json:"login"`
	Quota struct {
		Used      int    `json:"used"`
		Allowance int    `json:"allowance"`
		ResetsAt  string `json:"resets_at"`
	} `json:"quota"`
}
