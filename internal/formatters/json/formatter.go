// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"encoding/json"
	"strconv"

	"rs-miner/internal/formatters"
	"rs-miner/internal/search"
)

// Formatter implements the keyed search-result dump: one JSON object per
// EntityKey, in ascending key order, mirroring the structure the
// downstream report tooling consumes.
type Formatter struct{}

// NewFormatter creates a new JSON formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "json"
}

func (f *Formatter) Description() string {
	return "Keyed search-result dump for downstream tooling"
}

func (f *Formatter) FileExtension() string {
	return ".json"
}

func (f *Formatter) Format(report *formatters.Report, options formatters.FormatterOptions) (string, error) {
	out := make(map[string]*search.Result, len(report.Results))
	for _, key := range search.Keys(report.Results) {
		out[strconv.FormatInt(int64(key), 10)] = report.Results[key]
	}

	var data []byte
	var err error
	if options.Verbose {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	formatters.Register(NewFormatter())
}
