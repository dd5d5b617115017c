package masterlist

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
Package masterlist maintains the on-disk master list of known domains: a
plain line-oriented text file, one domain per line, with # comments. The
list is the long-lived artifact discovery runs feed into.
*/

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/metrics"
)

// Mode selects how discovered domains combine with an existing list.
type Mode string

const (
	// ModeUpdate merges new domains into the existing list.
	ModeUpdate Mode = "update"
	// ModeReplace discards the existing list in favor of the new domains.
	ModeReplace Mode = "replace"
)

// ErrInvalidMode reports an unrecognized mode name.
var ErrInvalidMode = errors.New("unknown master list mode")

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUpdate, ModeReplace:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Read loads a master list file. Blank lines and # comments are skipped,
// and lines that fail domain validation are skipped with a warning rather
// than aborting the load. A missing file is an empty list, not an error.
func Read(path string) ([]domain.Domain, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening master list %s: %w", path, err)
	}
	defer f.Close()

	var domains []domain.Domain
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := domain.ParseWildcard(line)
		if err != nil {
			log.Printf("Skipping invalid domain at %s:%d: %v", path, lineNo, err)
			continue
		}
		domains = append(domains, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading master list %s: %w", path, err)
	}
	return domains, nil
}

// Write stores a master list to disk, sorted and deduplicated, with a
// generated header. Parent directories are created as needed. The write is
// skipped entirely when the file already holds the same domain set, so
// unchanged lists keep their modification time.
func Write(path string, domains []domain.Domain) error {
	deduped := Deduplicate(domains)

	existing, err := Read(path)
	if err == nil && len(existing) > 0 && Fingerprint(existing) == Fingerprint(deduped) {
		log.Printf("Master list %s unchanged (%d domains), skipping write", path, len(deduped))
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating master list directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating master list %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Master domain list\n")
	fmt.Fprintf(w, "# Updated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "# Domains: %d\n", len(deduped))
	for _, d := range deduped {
		fmt.Fprintln(w, d.Name())
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing master list %s: %w", path, err)
	}

	metrics.GetMetrics().MasterListDomains.WithLabelValues(path).Set(float64(len(deduped)))
	return nil
}

// Deduplicate returns the unique domains in sorted order.
func Deduplicate(domains []domain.Domain) []domain.Domain {
	seen := make(map[domain.Domain]struct{}, len(domains))
	out := make([]domain.Domain, 0, len(domains))
	for _, d := range domains {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Diff returns the domains in candidates that are absent from existing.
func Diff(existing, candidates []domain.Domain) []domain.Domain {
	seen := make(map[domain.Domain]struct{}, len(existing))
	for _, d := range existing {
		seen[d] = struct{}{}
	}
	var added []domain.Domain
	for _, d := range Deduplicate(candidates) {
		if _, ok := seen[d]; !ok {
			added = append(added, d)
		}
	}
	return added
}

// Fingerprint hashes a domain set, ignoring order and duplicates. Two
// lists with the same fingerprint hold the same domains.
func Fingerprint(domains []domain.Domain) uint64 {
	deduped := Deduplicate(domains)
	names := make([]string, len(deduped))
	for i, d := range deduped {
		names[i] = d.Name()
	}
	return xxh3.HashString(strings.Join(names, "\n"))
}

// Result reports the outcome of an Update.
type Result struct {
	// Domains is the final list content.
	Domains []domain.Domain
	// Added holds the domains that were not in the existing list.
	Added []domain.Domain
	// Changed is true when the update modified the stored list.
	Changed bool
}

// Update merges discovered domains into the master list at path according
// to mode, writes the result, and reports what changed.
func Update(path string, discovered []domain.Domain, mode Mode) (*Result, error) {
	existing, err := Read(path)
	if err != nil {
		return nil, err
	}

	var final []domain.Domain
	added := Diff(existing, discovered)
	switch mode {
	case ModeReplace:
		final = Deduplicate(discovered)
	default:
		final = Deduplicate(append(append([]domain.Domain{}, existing...), discovered...))
	}

	changed := Fingerprint(existing) != Fingerprint(final)
	if changed {
		if err := Write(path, final); err != nil {
			return nil, err
		}
		m := metrics.GetMetrics()
		m.MasterListAdded.WithLabelValues(path).Add(float64(len(added)))
	} else {
		log.Printf("Master list %s already contains all %d discovered domains", path, len(discovered))
	}

	return &Result{Domains: final, Added: added, Changed: changed}, nil
}
