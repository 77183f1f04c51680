// Package registry dispatches statement content to the decoder named by an
// explicit format tag. Format is never sniffed from content: a caller that
// names a format the registry does not know made a request error, reported
// distinctly from decode failures so the caller fixes the request rather
// than the file.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/decoder/cnab"
	"github.com/ledgerscope/ledgerscope/internal/decoder/csvx"
	"github.com/ledgerscope/ledgerscope/internal/decoder/ofx"
	"github.com/ledgerscope/ledgerscope/internal/decoder/xmlstmt"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// ErrUnknownFormat reports a format selector the registry has no decoder
// for. This is a usage error, not a decode error.
var ErrUnknownFormat = errors.New("unknown statement format")

// Registry holds all registered decoders keyed by format tag
type Registry struct {
	decoders map[decoder.Format]decoder.Decoder
}

// New creates a registry with all built-in decoders. The delimited-text
// decoder uses the embedded default column layout; use Register to override
// it with a custom layout.
func New() (*Registry, error) {
	csvDecoder, err := csvx.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to create delimited-text decoder: %w", err)
	}

	return &Registry{
		decoders: map[decoder.Format]decoder.Decoder{
			decoder.FormatOFX:  ofx.New(),
			decoder.FormatCSV:  csvDecoder,
			decoder.FormatXML:  xmlstmt.New(),
			decoder.FormatCNAB: cnab.New(),
		},
	}, nil
}

// Register adds or replaces the decoder for a format tag
func (r *Registry) Register(format decoder.Format, d decoder.Decoder) {
	r.decoders[format] = d
}

// Get returns the decoder for a format tag
func (r *Registry) Get(format decoder.Format) (decoder.Decoder, error) {
	d, ok := r.decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known formats: %v)", ErrUnknownFormat, format, r.Formats())
	}
	return d, nil
}

// Decode dispatches content to the decoder for the given format tag. Decoder
// failures propagate unchanged.
func (r *Registry) Decode(ctx context.Context, content []byte, format decoder.Format) ([]domain.StatementEntry, error) {
	d, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	return d.Decode(ctx, bytes.NewReader(content))
}

// Formats returns the sorted list of registered format tags
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.decoders))
	for f := range r.decoders {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
