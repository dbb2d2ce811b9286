/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// table is a named list of records, all with the same columns.
type table struct {
	name    string
	columns []string
	rows    [][]string
}

// records converts the table rows to maps from column name to value.
func (t table) records() []any {
	records := make([]any, 0, len(t.rows))
	for _, row := range t.rows {
		record := make(map[string]any, len(t.columns))
		for ii, column := range t.columns {
			record[column] = row[ii]
		}
		records = append(records, record)
	}
	return records
}

// document converts tables to a map from table name to its records.
func document(tables []table) map[string]any {
	doc := make(map[string]any, len(tables))
	for _, t := range tables {
		doc[t.name] = t.records()
	}
	return doc
}

// render writes the tables to w in the given format: text, json or yaml.
func render(w io.Writer, format string, tables ...table) error {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, tables)
	case "json":
		doc, err := structpb.NewStruct(document(tables))
		if err != nil {
			return errors.Wrap(err, "converting output to JSON")
		}
		out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
		if err != nil {
			return errors.Wrap(err, "converting output to JSON")
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(document(tables)); err != nil {
			return errors.Wrap(err, "converting output to YAML")
		}
		return encoder.Close()
	}
	return errors.Errorf("unknown output format %q, valid values are text, json or yaml", format)
}

func renderText(w io.Writer, tables []table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for ii, t := range tables {
		if ii > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		_, _ = fmt.Fprintf(tw, "%s (%d):\n", t.name, len(t.rows))
		if len(t.rows) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.columns, "\t")))
		for _, row := range t.rows {
			_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
	}
	return tw.Flush()
}
