// Copyright 2023 The chert authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Command chertx parses, optimizes, and explains aggregation
// pipelines. It reads an extended-JSON pipeline array, runs the
// optimizer over it, and prints the result.
//
// Usage:
//
//	chertx [-c compat.yaml] [-o json|yaml|table] [-explain] [-shape] [file]
//
// With no file argument the pipeline is read from stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"go.mongodb.org/mongo-driver/bson"
	"sigs.k8s.io/yaml"

	"github.com/chertdb/chert/aggr"
	"github.com/chertdb/chert/compat"
)

var (
	dashv       bool
	dashc       string
	dasho       string
	dashexplain bool
	dashshape   bool
	dashraw     bool
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.StringVar(&dashc, "c", "", "compatibility file (yaml)")
	flag.StringVar(&dasho, "o", "json", "output format (json, yaml, or table)")
	flag.BoolVar(&dashexplain, "explain", false, "annotate each stage with its modified-paths descriptor")
	flag.BoolVar(&dashshape, "shape", false, "print the query shape key instead of the pipeline")
	flag.BoolVar(&dashraw, "raw", false, "skip optimization; print the parsed pipeline as-is")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() > 1 {
		exitf("usage: chertx [options] [file]\n")
	}

	var c *compat.Compat
	if dashc != "" {
		var err error
		c, err = compat.Load(dashc)
		if err != nil {
			exitf("loading %s: %s\n", dashc, err)
		}
	}

	src := os.Stdin
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			exitf("%s\n", err)
		}
		defer f.Close()
		src = f
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		exitf("reading pipeline: %s\n", err)
	}

	specs, err := decodePipeline(buf)
	if err != nil {
		exitf("parsing pipeline: %s\n", err)
	}

	runid := uuid.New()
	if dashv {
		log.Printf("run %s: %d stage(s)", runid, len(specs))
	}

	reg := aggr.NewRegistry(c)
	p, err := aggr.Parse(reg, specs)
	if err != nil {
		exitf("%s\n", err)
	}
	if !dashraw {
		p.Optimize()
		if dashv {
			log.Printf("run %s: optimized to %d stage(s), shape %s", runid, p.Len(), p.ShapeKey())
		}
	}

	if dashshape {
		fmt.Println(p.ShapeKey())
		return
	}

	out := p.Serialize()
	if dashexplain {
		out = p.Explain()
	}
	if err := emit(os.Stdout, out); err != nil {
		exitf("writing output: %s\n", err)
	}
}

// decodePipeline parses an extended-JSON array of stage objects.
// The array is wrapped in a document because the bson codec
// decodes documents, not bare arrays.
func decodePipeline(buf []byte) ([]bson.D, error) {
	wrapped := append([]byte(`{"pipeline":`), buf...)
	wrapped = append(wrapped, '}')
	var doc struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return nil, err
	}
	return doc.Pipeline, nil
}

func emit(w io.Writer, stages []bson.D) error {
	switch dasho {
	case "json":
		buf, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: stages}}, false, false)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", buf)
		return err
	case "yaml":
		buf, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: stages}}, false, false)
		if err != nil {
			return err
		}
		out, err := yaml.JSONToYAML(buf)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "table":
		return emitTable(w, stages)
	}
	return fmt.Errorf("unknown output format %q", dasho)
}

func emitTable(w io.Writer, stages []bson.D) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Stage", "Specification"})
	table.SetAutoWrapText(false)
	for i, s := range stages {
		buf, err := bson.MarshalExtJSON(s, false, false)
		if err != nil {
			return err
		}
		name := ""
		if len(s) > 0 {
			name = s[0].Key
		}
		table.Append([]string{
			fmt.Sprint(i),
			name,
			strings.TrimSpace(string(buf)),
		})
	}
	table.Render()
	return nil
}
