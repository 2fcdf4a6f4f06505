// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mifeet/tensorizer/internal/format"
	"github.com/mifeet/tensorizer/serialize"
)

// fileSummary is everything inspect prints, separated from printing so
// it can be tested.
type fileSummary struct {
	FileBytes uint64
	Metadata  map[string]string
	Entries   []format.Entry
}

func inspectFile(path string) (*fileSummary, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	// On-demand: the index is all inspect needs.
	r, err := serialize.Open(path, serialize.WithOnDemand())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return &fileSummary{
		FileBytes: uint64(fi.Size()),
		Metadata:  r.Metadata(),
		Entries:   r.Entries(),
	}, nil
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the metadata and tensor table of a file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("usage: tensorize inspect <file>", 1)
			}

			s, err := inspectFile(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Printf("File: %s (%s)\n", path, formatBytes(s.FileBytes))
			fmt.Printf("Tensors: %d\n", len(s.Entries))

			if len(s.Metadata) > 0 {
				fmt.Println("\nMetadata:")
				keys := make([]string, 0, len(s.Metadata))
				for k := range s.Metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("  %-24s %s\n", k+":", s.Metadata[k])
				}
			}

			fmt.Println()
			for _, e := range s.Entries {
				fmt.Printf("%-40s dtype=%-8s shape=%-16s stored=%-12s raw=%-12s codec=%s\n",
					e.Name, e.DType, formatShape(e.Shape), formatBytes(e.StoredLength),
					formatBytes(e.RawLength), e.Codec)
			}
			return nil
		},
	}
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
