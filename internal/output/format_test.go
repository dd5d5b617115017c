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

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/match"
)

func sampleMatches(t *testing.T) map[string]*match.Match {
	t.Helper()

	d1, err := domain.Parse("www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	m1 := match.NewDNS(d1)
	m1.Types.Add(match.TypeForward)
	m1.IP = "192.0.2.1"
	m1.LastUpdatedAt = "2023-01-15T10:00:00Z"

	d2, err := domain.Parse("api.example.com")
	if err != nil {
		t.Fatal(err)
	}
	m2 := match.NewCertificate(d2)
	m2.Types.Add(match.TypeCertificate)
	m2.Types.Add(match.TypeForward)
	m2.AddedAt = "2023-01-10T00:00:00Z"
	m2.IP = "192.0.2.2"

	return map[string]*match.Match{
		"www.example.com": m1,
		"api.example.com": m2,
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("ParseFormat(csv) did not fail")
	}
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Render(&buf, sampleMatches(t), FormatJSON, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var env struct {
		Format             string            `json:"format"`
		TotalMatches       int               `json:"total_matches"`
		DNSMatches         int               `json:"dns_matches"`
		CertificateMatches int               `json:"certificate_matches"`
		Data               []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Format != "json" || env.TotalMatches != 2 {
		t.Errorf("envelope = %+v", env)
	}
	// www is DNS-only; api is a merged certificate record.
	if env.DNSMatches != 2 || env.CertificateMatches != 1 {
		t.Errorf("source counts = dns %d, cert %d; want 2 and 1", env.DNSMatches, env.CertificateMatches)
	}
	if len(env.Data) != 2 {
		t.Fatalf("data length = %d", len(env.Data))
	}
}

func TestRenderJSONUnified(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Render(&buf, sampleMatches(t), FormatJSON, Options{Unified: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var env struct {
		Data []match.UnifiedEntry `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if len(env.Data) != 2 {
		t.Fatalf("data length = %d", len(env.Data))
	}
	// api is a merged certificate record carrying an IP, so it reports
	// both sources; www is DNS only.
	if got := env.Data[0]; got.Domain != "api.example.com" || len(got.Sources) != 2 {
		t.Errorf("unified entry = %+v, want api.example.com from both sources", got)
	}
	if got := env.Data[1]; got.Domain != "www.example.com" || len(got.Sources) != 1 || got.Sources[0] != "dns" {
		t.Errorf("unified entry = %+v, want www.example.com from dns", got)
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Render(&buf, sampleMatches(t), FormatText, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "api.example.com" || lines[1] != "www.example.com" {
		t.Errorf("text output = %v, want sorted hostnames", lines)
	}
}

func TestRenderTextWithMetadata(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Render(&buf, sampleMatches(t), FormatText, Options{Metadata: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 2 header comments and 2 records", len(lines))
	}
	if !strings.HasPrefix(lines[0], "# Domain matches: 2") || !strings.HasPrefix(lines[1], "# domain") {
		t.Errorf("header lines = %q, %q", lines[0], lines[1])
	}
	fields := strings.Split(lines[2], "\t")
	if len(fields) != 5 || fields[0] != "api.example.com" {
		t.Fatalf("metadata line = %q", lines[2])
	}
	// api carries DNS metadata on a certificate record, so both sources show.
	if fields[1] != "dns,certificate" && fields[1] != "certificate,dns" {
		t.Errorf("sources field = %q", fields[1])
	}
	if !strings.Contains(fields[2], match.TypeCertificate) {
		t.Errorf("types field = %q", fields[2])
	}
	if fields[3] != "192.0.2.2" {
		t.Errorf("ip field = %q", fields[3])
	}
	if fields[4] != "2023-01-10T00:00:00Z" {
		t.Errorf("timestamp field = %q, want certificate added_at", fields[4])
	}
	wwwFields := strings.Split(lines[3], "\t")
	if wwwFields[0] != "www.example.com" || wwwFields[1] != "dns" {
		t.Errorf("dns line = %q", lines[3])
	}
}

func TestWriteFileAndParseResults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "results.json")
	if err := WriteFile(path, sampleMatches(t), FormatJSON, Options{}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	domains, err := ParseResultsFile(path)
	if err != nil {
		t.Fatalf("ParseResultsFile: %v", err)
	}
	if len(domains) != 2 {
		t.Fatalf("got %d domains, want 2", len(domains))
	}
	if domains[0].Name() != "api.example.com" || domains[1].Name() != "www.example.com" {
		t.Errorf("domains = %v", domains)
	}
}

func TestParseResultsFileBareArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flat.json")
	content := `[{"hostname": "a.example.com", "types": ["forward"], "source": "censys"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	domains, err := ParseResultsFile(path)
	if err != nil {
		t.Fatalf("ParseResultsFile: %v", err)
	}
	if len(domains) != 1 || domains[0].Name() != "a.example.com" {
		t.Errorf("domains = %v", domains)
	}
}

func TestParseResultsFileRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"something": "else"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseResultsFile(path); err == nil {
		t.Error("expected error for unrecognized shape")
	}
}

func TestConsoleSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ConsoleSummary(&buf, "example.com", sampleMatches(t))
	out := buf.String()

	for _, want := range []string{
		"Results for example.com",
		"Total hostnames:    2",
		"example.com", // registrable-domain grouping
		"Sample:",
		"api.example.com",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleSummaryEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ConsoleSummary(&buf, "example.com", nil)
	if !strings.Contains(buf.String(), "Total hostnames:    0") {
		t.Errorf("empty summary = %q", buf.String())
	}
	if strings.Contains(buf.String(), "Sample:") {
		t.Error("empty summary should not print a sample block")
	}
}
