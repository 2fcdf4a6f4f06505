// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mifeet/tensorizer/serialize"
)

type verifyReport struct {
	Tensors     int
	RawBytes    uint64
	StoredBytes uint64
}

// verifyFile re-validates the whole file: index checksum and entry
// validation happen at open, then every payload is read and decoded
// end to end through a low-memory reader.
func verifyFile(path string) (*verifyReport, error) {
	r, err := serialize.Open(path, serialize.WithLowMemory())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var report verifyReport
	for _, e := range r.Entries() {
		t, err := r.Get(e.Name)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", e.Name, err)
		}
		data, err := t.Data()
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", e.Name, err)
		}
		if uint64(len(data)) != e.RawLength {
			return nil, fmt.Errorf("tensor %q: decoded %d bytes, index says %d", e.Name, len(data), e.RawLength)
		}
		report.Tensors++
		report.RawBytes += e.RawLength
		report.StoredBytes += e.StoredLength
	}
	return &report, nil
}

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Validate the index and read every payload end to end",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("usage: tensorize verify <file>", 1)
			}

			report, err := verifyFile(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("verification failed: %v", err), 1)
			}

			fmt.Printf("OK: %d tensors, %s raw (%s stored)\n",
				report.Tensors, formatBytes(report.RawBytes), formatBytes(report.StoredBytes))
			return nil
		},
	}
}
