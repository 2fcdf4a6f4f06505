// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/serialize"
)

// repackFile streams every tensor from in to out under a different
// compression codec. The low-memory reader visits each name exactly
// once, so peak memory stays at one tensor regardless of file size.
func repackFile(in, out string, codec compression.Type) error {
	r, err := serialize.Open(in, serialize.WithLowMemory())
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := []serialize.WriterOption{serialize.WithCompression(codec)}
	if meta := r.Metadata(); len(meta) > 0 {
		opts = append(opts, serialize.WithMetadata(meta))
	}
	w, err := serialize.NewWriter(f, opts...)
	if err != nil {
		return err
	}

	for _, e := range r.Entries() {
		t, err := r.Get(e.Name)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", e.Name, err)
		}
		data, err := t.Data()
		if err != nil {
			return fmt.Errorf("tensor %q: %w", e.Name, err)
		}
		if err := w.WriteTensor(e.Name, e.DType, e.Shape, data); err != nil {
			return err
		}
	}
	return w.Close()
}

func repackCmd() *cli.Command {
	var codecName string

	return &cli.Command{
		Name:      "repack",
		Usage:     "Rewrite a file under a different compression codec",
		ArgsUsage: "<in> <out>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "compression",
				Usage:       "codec for the new file: none, zstd or lz4",
				Value:       "zstd",
				Destination: &codecName,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			in, out := c.Args().Get(0), c.Args().Get(1)
			if in == "" || out == "" {
				return cli.Exit("usage: tensorize repack [--compression=zstd] <in> <out>", 1)
			}

			codec, err := compression.Parse(codecName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := repackFile(in, out, codec); err != nil {
				return cli.Exit(fmt.Sprintf("repack failed: %v", err), 1)
			}

			fmt.Printf("Repacked %s into %s (%s)\n", in, out, codec)
			return nil
		},
	}
}
