package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// cacheTTL is the prompt cache lifetime requested on system blocks. The
// classification and scoring instructions are identical across every
// transcript in a run, so the long TTL keeps them warm across rounds.
const cacheTTL = "1h"

// BuildCachedSystemBlocks wraps the system prompt in a single content
// block with a cache breakpoint. Batch rounds send one sequential primer
// request first so the batch lands on a warm cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: cacheTTL,
			},
		},
	}
}

// PrimerRequest sends one message to warm the prompt cache. The request
// should carry system blocks built with BuildCachedSystemBlocks; the
// response is a normal message response and may be used as the first
// item's result.
func PrimerRequest(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: primer request")
	}
	return resp, nil
}
