// Package plot implements plot-file registration and the reader pool that
// streams scoop data from disk into bounded buffers for verification.
package plot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/engine"
)

// ScoopSize is the size in bytes of one scoop slice for one nonce.
const ScoopSize = 64

// ScoopsPerNonce is the number of scoops in [0, 4096) per nonce.
const ScoopsPerNonce = 4096

// File is an immutable-once-registered plot file: path, owning account,
// nonce count, and physical size. Format version is not a property of the
// file itself; it is determined at read time from the block height in
// effect (see VersionForHeight), since the activation height is a property
// of the chain, not of any one file.
type File struct {
	Path       string
	AccountID  uint64
	StartNonce uint64
	Nonces     uint64
	Size       int64
}

// Ref returns the minimal reference a read notification carries.
func (f *File) Ref() engine.PlotFileRef {
	return engine.PlotFileRef{
		Path:       f.Path,
		AccountID:  f.AccountID,
		StartNonce: f.StartNonce,
		Nonces:     f.Nonces,
		Size:       f.Size,
	}
}

// Dir is a directory of plot files plus related directories, carrying a
// scheduling hint.
type Dir struct {
	Path        string
	Type        config.PlotDirType
	RelatedDirs []string
	Files       []*File
}

// TotalBytes returns the sum of physical sizes of files in this directory.
func (d *Dir) TotalBytes() int64 {
	var total int64
	for _, f := range d.Files {
		total += f.Size
	}
	return total
}

// VersionForHeight returns the plot-layout version in effect at height,
// given the configured PoC2 activation height.
func VersionForHeight(height, poc2StartBlock uint64) engine.PoCVersion {
	if poc2StartBlock > 0 && height >= poc2StartBlock {
		return engine.PoC2
	}
	return engine.PoC1
}

// ScoopOffset returns the byte offset of the ScoopSize-byte scoop slice for
// one nonce within a file of totalNonces, given the plot-layout version.
//
// PoC1 files are nonce-major: each nonce's 4096 scoops are stored
// contiguously, so reading one scoop means one seek per nonce.
// PoC2 files are scoop-major: all nonces' data for a given scoop are stored
// contiguously, so reading one scoop across an entire file is one
// sequential read. This is the actual motivation for the PoC2 format in the
// source currency; the exact byte layout beyond this contract is out of
// scope.
func ScoopOffset(version engine.PoCVersion, nonceIndex, scoop, totalNonces uint64) int64 {
	switch version {
	case engine.PoC2:
		return int64(scoop*totalNonces+nonceIndex) * ScoopSize
	default:
		return int64(nonceIndex*ScoopsPerNonce+scoop) * ScoopSize
	}
}

// parseFileName parses the conventional plot-file naming scheme:
// <accountId>_<startNonce>_<nonces>[_<stagger>]; a stagger part is accepted
// but not parsed.
func parseFileName(name string) (accountID, startNonce, nonces uint64, err error) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("plot file name %q does not match <account>_<start>_<nonces>[_<stagger>]", name)
	}
	accountID, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid account id in %q: %w", name, err)
	}
	startNonce, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start nonce in %q: %w", name, err)
	}
	nonces, err = strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid nonce count in %q: %w", name, err)
	}
	return accountID, startNonce, nonces, nil
}
