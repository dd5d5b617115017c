package output

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
Package output renders discovery results for files and the console. It
performs no matching logic of its own; it consumes the result map the
pipeline produces.
*/

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/match"
)

// Format selects the rendering for result files.
type Format string

const (
	// FormatJSON renders the full envelope with per-match metadata.
	FormatJSON Format = "json"
	// FormatText renders one hostname per line.
	FormatText Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatText:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format: %q", s)
}

// envelope is the JSON result file shape. Data holds per-match records in
// the flat shape, or per-hostname entries when unified output is requested.
type envelope struct {
	Format             string `json:"format"`
	TotalMatches       int    `json:"total_matches"`
	DNSMatches         int    `json:"dns_matches"`
	CertificateMatches int    `json:"certificate_matches"`
	Data               any    `json:"data"`
}

// Options tunes rendering.
type Options struct {
	// Metadata adds timestamps, types, and IPs to text output lines.
	// JSON output always carries metadata.
	Metadata bool
	// Unified collapses JSON output to one entry per hostname with a
	// derived sources list instead of one record per match.
	Unified bool
}

// Render writes the result map to w in the requested format. Matches are
// emitted in sorted hostname order.
func Render(w io.Writer, matches map[string]*match.Match, format Format, opts Options) error {
	flat := match.SerializeFlat(matches)

	switch format {
	case FormatJSON:
		var dnsCount, certCount int
		for _, m := range flat {
			for _, k := range m.SourceKinds() {
				switch k {
				case match.KindDNS:
					dnsCount++
				case match.KindCertificate:
					certCount++
				}
			}
		}
		data := any(flat)
		if opts.Unified {
			data = match.SerializeUnified(matches)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(envelope{
			Format:             string(FormatJSON),
			TotalMatches:       len(flat),
			DNSMatches:         dnsCount,
			CertificateMatches: certCount,
			Data:               data,
		})

	case FormatText:
		if opts.Metadata {
			fmt.Fprintf(w, "# Domain matches: %d\n", len(flat))
			fmt.Fprintln(w, "# domain\tsources\ttype\tip\ttimestamp")
			for _, m := range flat {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					m.Hostname.Name(),
					joinKinds(m.SourceKinds()),
					strings.Join(m.Types.Slice(), ","),
					orDash(m.IP),
					orDash(textTimestamp(m)))
			}
			return nil
		}
		for _, m := range flat {
			fmt.Fprintln(w, m.Hostname.Name())
		}
		return nil
	}
	return fmt.Errorf("unknown output format: %q", format)
}

func textTimestamp(m *match.Match) string {
	if m.Kind == match.KindCertificate && m.AddedAt != "" {
		return m.AddedAt
	}
	return m.LastUpdatedAt
}

func joinKinds(kinds []match.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteFile renders the result map to a file, creating parent directories.
func WriteFile(path string, matches map[string]*match.Match, format Format, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", path, err)
	}
	defer f.Close()
	return Render(f, matches, format, opts)
}

// ParseResultsFile reads a previously written JSON result file and returns
// the domains it contains. The envelope shape (flat or unified data) and a
// bare array of match records are all accepted, so hand-built files also
// feed the master list commands.
func ParseResultsFile(path string) ([]domain.Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file %s: %w", path, err)
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err == nil && len(env.Data) > 0 {
		if doms, err := decodeResultArray(env.Data); err == nil {
			return doms, nil
		}
	}

	if doms, err := decodeResultArray(data); err == nil {
		return doms, nil
	}

	return nil, fmt.Errorf("results file %s: not a recognized result format", path)
}

// decodeResultArray decodes an array of match records. Unified entries
// decode through the same lenient path: the hostname is a bare string and
// the kind is inferred from added_at.
func decodeResultArray(data []byte) ([]domain.Domain, error) {
	var flat []*match.Match
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	out := make([]domain.Domain, 0, len(flat))
	for _, m := range flat {
		out = append(out, m.Hostname)
	}
	return out, nil
}

// ConsoleSummary writes a human-oriented run summary: totals per source,
// sample hostnames, and a breakdown by registrable domain.
func ConsoleSummary(w io.Writer, pattern string, matches map[string]*match.Match) {
	flat := match.SerializeFlat(matches)

	var dnsOnly, certOnly, both int
	for _, m := range flat {
		kinds := m.SourceKinds()
		switch {
		case len(kinds) == 2:
			both++
		case len(kinds) == 1 && kinds[0] == match.KindDNS:
			dnsOnly++
		default:
			certOnly++
		}
	}

	fmt.Fprintf(w, "Results for %s\n", pattern)
	fmt.Fprintf(w, "  Total hostnames:    %d\n", len(flat))
	fmt.Fprintf(w, "  DNS only:           %d\n", dnsOnly)
	fmt.Fprintf(w, "  Certificate only:   %d\n", certOnly)
	fmt.Fprintf(w, "  Both sources:       %d\n", both)

	if len(flat) == 0 {
		return
	}

	// Group by registrable domain so large result sets stay readable.
	groups := make(map[string]int)
	for _, m := range flat {
		name := strings.TrimPrefix(m.Hostname.Name(), domain.WildcardPrefix)
		etld, err := publicsuffix.EffectiveTLDPlusOne(name)
		if err != nil {
			etld = name
		}
		groups[etld]++
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if groups[keys[i]] != groups[keys[j]] {
			return groups[keys[i]] > groups[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintln(w, "  By registrable domain:")
	for _, k := range keys {
		fmt.Fprintf(w, "    %-40s %d\n", k, groups[k])
	}

	const sampleSize = 10
	fmt.Fprintln(w, "  Sample:")
	for i, m := range flat {
		if i >= sampleSize {
			fmt.Fprintf(w, "    ... and %d more\n", len(flat)-sampleSize)
			break
		}
		fmt.Fprintf(w, "    %s\n", m.Hostname.Name())
	}
}
