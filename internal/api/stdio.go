package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
)

// ServeStdio reads a stream of JSON envelopes from r and writes one
// response line per envelope to w. It stops at EOF, on a decode error
// it cannot recover from, or when ctx is cancelled.
func (d *Dispatcher) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(bufio.NewReader(r))
	out := bufio.NewWriter(w)
	encoder := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if err == io.EOF {
			return out.Flush()
		}

		var resp Response
		if err != nil {
			// The stream position is unknown after a syntax error
			resp = failure(0, "Invalid JSON input: %v", err)
			if encodeErr := encoder.Encode(resp); encodeErr != nil {
				return encodeErr
			}
			log.Warn().Err(err).Msg("stopping stdio loop after malformed input")
			return out.Flush()
		}

		resp = d.Handle(ctx, raw)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
}
