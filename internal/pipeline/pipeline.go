package pipeline

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
Package pipeline orchestrates one discovery run: it fires the DNS and
certificate searches concurrently, extracts matches from each page into
per-source accumulators, then aggregates and expands wildcards into the
final result map.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/x-stp/censeek/internal/censys"
	"github.com/x-stp/censeek/internal/domain"
	"github.com/x-stp/censeek/internal/match"
	"github.com/x-stp/censeek/internal/metrics"
	"github.com/x-stp/censeek/internal/process"
)

// DataType selects which sources a run queries.
type DataType string

const (
	DataTypeDNS         DataType = "dns"
	DataTypeCertificate DataType = "certificate"
	DataTypeBoth        DataType = "both"
)

// ParseDataType validates a data type name.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case DataTypeDNS, DataTypeCertificate, DataTypeBoth:
		return DataType(s), nil
	}
	return "", fmt.Errorf("unknown data type: %q (want dns, certificate, or both)", s)
}

// Options configures one discovery run.
type Options struct {
	// Pattern is the target domain, plain or wildcard.
	Pattern string
	// DataType selects the sources to query.
	DataType DataType
	// Days restricts results to records updated within the window.
	// 0 means no restriction.
	Days int
	// MaxPages bounds pages fetched per source. 0 means no limit.
	MaxPages int
	// ExpandWildcards folds wildcard hostnames into their base domains.
	ExpandWildcards bool
}

// Stats summarizes a completed run. Each record counter is written by a
// single search goroutine and read only after both have finished.
type Stats struct {
	Pattern      string
	DNSRecords   int
	CertRecords  int
	TotalMatches int
	Duration     time.Duration
}

// Run executes one discovery pipeline and returns the final result map.
// The pattern is normalized and validated up front; querying and extraction
// for the two sources proceed concurrently on separate accumulators.
func Run(ctx context.Context, client *censys.Client, opts Options) (map[string]*match.Match, *Stats, error) {
	pattern := domain.NormalizeWildcard(opts.Pattern)
	if _, err := domain.ParseWildcard(pattern); err != nil {
		return nil, nil, fmt.Errorf("invalid domain pattern: %w", err)
	}

	m := metrics.GetMetrics()
	m.PipelineActive.WithLabelValues(string(opts.DataType)).Inc()
	defer m.PipelineActive.WithLabelValues(string(opts.DataType)).Dec()
	donePipeline := metrics.MeasureDuration(m.PipelineDuration, map[string]string{"data_type": string(opts.DataType)})
	defer donePipeline()

	start := time.Now()
	stats := &Stats{Pattern: pattern}

	dnsAcc := process.NewAccumulator()
	certAcc := process.NewAccumulator()
	searchOpts := censys.SearchOptions{MaxPages: opts.MaxPages}
	now := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	if opts.DataType == DataTypeDNS || opts.DataType == DataTypeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := censys.BuildDNSQuery(pattern, opts.Days, now)
			err := client.Search(ctx, q, searchOpts, func(hits []json.RawMessage) error {
				for _, hit := range hits {
					rec, err := censys.DecodeHostResult(hit)
					if err != nil {
						log.Printf("Skipping undecodable host record: %v", err)
						continue
					}
					stats.DNSRecords++
					m.RecordsProcessedTotal.WithLabelValues(string(match.KindDNS)).Inc()
					dnsAcc.AddAll(process.ExtractDNS(rec, pattern))
				}
				return nil
			})
			if err != nil {
				recordErr(fmt.Errorf("dns search: %w", err))
			}
		}()
	}

	if opts.DataType == DataTypeCertificate || opts.DataType == DataTypeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := censys.BuildCertificateQuery(pattern, opts.Days, now)
			err := client.Search(ctx, q, searchOpts, func(hits []json.RawMessage) error {
				for _, hit := range hits {
					rec, err := censys.DecodeCertificateResult(hit)
					if err != nil {
						log.Printf("Skipping undecodable certificate record: %v", err)
						continue
					}
					stats.CertRecords++
					m.RecordsProcessedTotal.WithLabelValues(string(match.KindCertificate)).Inc()
					certAcc.AddAll(process.ExtractCertificate(rec, pattern))
				}
				return nil
			})
			if err != nil {
				recordErr(fmt.Errorf("certificate search: %w", err))
			}
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}

	combined := process.Aggregate(dnsAcc.Matches(), certAcc.Matches())
	if opts.ExpandWildcards {
		combined = process.ExpandWildcards(combined)
	}

	stats.TotalMatches = len(combined)
	stats.Duration = time.Since(start)
	log.Printf("Discovery for %s: %d DNS records, %d certificate records, %d hostnames in %v",
		pattern, stats.DNSRecords, stats.CertRecords, stats.TotalMatches, stats.Duration.Round(time.Millisecond))
	return combined, stats, nil
}

