package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kolektra/callqa/internal/config"
	"github.com/kolektra/callqa/internal/gateway"
	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/prompt"
	"github.com/kolektra/callqa/internal/transcript"
	"github.com/kolektra/callqa/pkg/anthropic"
)

// BatchItem is one transcript queued for batch analysis.
type BatchItem struct {
	ID   string
	Text string
}

// BatchResult pairs an item ID with either its analysis or the error
// that stopped it. Per-item failures never abort the batch.
type BatchResult struct {
	ID       string
	Analysis *Analysis
	Err      error
}

// AnalyzeBatch analyzes a set of transcripts. Small sets (or NoBatch
// mode) run concurrent direct requests under a rate limiter; larger
// sets go through the Batch API in two rounds, classification then
// scoring, each primed with one sequential request to warm the prompt
// cache. Results come back in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, items []BatchItem, batchCfg config.BatchConfig) []BatchResult {
	if len(items) == 0 {
		return nil
	}

	unique, dupes := deduplicateItems(items)

	threshold := a.aiCfg.SmallBatchThreshold
	if threshold <= 0 {
		threshold = 8
	}

	var byID map[string]BatchResult
	if a.aiCfg.NoBatch || len(unique) <= threshold {
		byID = a.analyzeDirect(ctx, unique, batchCfg)
	} else {
		byID = a.analyzeViaBatchAPI(ctx, unique)
	}

	// Duplicates inherit their content twin's result.
	for winnerID, dupIDs := range dupes {
		for _, id := range dupIDs {
			r := byID[winnerID]
			byID[id] = BatchResult{ID: id, Analysis: r.Analysis, Err: r.Err}
		}
	}

	out := make([]BatchResult, 0, len(items))
	for _, item := range items {
		out = append(out, byID[item.ID])
	}
	return out
}

func (a *Analyzer) analyzeDirect(ctx context.Context, items []BatchItem, batchCfg config.BatchConfig) map[string]BatchResult {
	limit := batchCfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	rps := batchCfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	results := make([]BatchResult, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			if err := limiter.Wait(gCtx); err != nil {
				results[i] = BatchResult{ID: item.ID, Err: err}
				return nil
			}
			an, err := a.Analyze(gCtx, item.Text)
			if err != nil {
				zap.L().Warn("batch: transcript analysis failed",
					zap.String("id", item.ID),
					zap.Error(err),
				)
			}
			results[i] = BatchResult{ID: item.ID, Analysis: an, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]BatchResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	return byID
}

func (a *Analyzer) analyzeViaBatchAPI(ctx context.Context, items []BatchItem) map[string]BatchResult {
	byID := make(map[string]BatchResult, len(items))

	// Round 1: classification on the cheap tier.
	classifyPrompts := make(map[string]prompt.Prompt, len(items))
	for _, item := range items {
		p, err := prompt.Classification(item.Text)
		if err != nil {
			byID[item.ID] = BatchResult{ID: item.ID, Err: err}
			continue
		}
		classifyPrompts[item.ID] = p
	}

	classifyRaw, err := a.batchRound(ctx, opClassify, a.classifyGW.Model(), classifyPrompts)
	if err != nil {
		return failAll(byID, items, err)
	}

	calls := make(map[string]*model.CallData, len(items))
	usages := make(map[string]model.TokenUsage, len(items))
	for id, rr := range classifyRaw {
		usages[id] = rr.usage
		if rr.err != nil {
			byID[id] = BatchResult{ID: id, Err: rr.err}
			continue
		}
		cd := &model.CallData{}
		if verr := gateway.Decode(rr.raw, cd); verr != nil {
			byID[id] = BatchResult{ID: id, Err: &gateway.SchemaViolationError{Op: opClassify, Raw: rr.raw, Err: verr}}
			continue
		}
		calls[id] = cd
	}

	// Round 2: scoring on the strong tier, scenario fixed by round 1.
	scorePrompts := make(map[string]prompt.Prompt, len(calls))
	for _, item := range items {
		cd, ok := calls[item.ID]
		if !ok {
			continue
		}
		p, perr := prompt.Scoring(item.Text, cd.BasicInfo.ScenarioType)
		if perr != nil {
			byID[item.ID] = BatchResult{ID: item.ID, Err: perr}
			delete(calls, item.ID)
			continue
		}
		scorePrompts[item.ID] = p
	}

	scoreRaw, err := a.batchRound(ctx, opScore, a.scoreGW.Model(), scorePrompts)
	if err != nil {
		return failAll(byID, items, err)
	}

	for _, item := range items {
		cd, ok := calls[item.ID]
		if !ok {
			continue
		}
		rr := scoreRaw[item.ID]
		usage := usages[item.ID]
		usage.Add(rr.usage)

		if rr.err != nil {
			byID[item.ID] = BatchResult{ID: item.ID, Err: rr.err}
			continue
		}
		qs := &model.QAScore{}
		if verr := gateway.Decode(rr.raw, qs); verr != nil {
			byID[item.ID] = BatchResult{ID: item.ID, Err: &gateway.SchemaViolationError{Op: opScore, Raw: rr.raw, Err: verr}}
			continue
		}
		qs = Normalize(qs, a.scoring)

		byID[item.ID] = BatchResult{
			ID: item.ID,
			Analysis: &Analysis{
				Transcript: item.Text,
				Metadata:   transcript.ExtractMetadata(item.Text),
				Call:       cd,
				Score:      qs,
				Usage:      usage,
			},
		}
	}

	return byID
}

type roundResult struct {
	raw   string
	usage model.TokenUsage
	err   error
}

// batchRound sends one round of prompts through the Batch API. The
// first prompt (in sorted ID order) goes out as a sequential primer so
// the cached system prompt is warm before the batch lands.
func (a *Analyzer) batchRound(ctx context.Context, op, modelID string, prompts map[string]prompt.Prompt) (map[string]roundResult, error) {
	results := make(map[string]roundResult, len(prompts))
	if len(prompts) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(prompts))
	for id := range prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	primerID := ids[0]
	resp, err := anthropic.PrimerRequest(ctx, a.client, a.messageRequest(modelID, prompts[primerID]))
	if err != nil {
		results[primerID] = roundResult{err: &gateway.ProviderError{Op: op, Err: err}}
	} else {
		results[primerID] = roundResult{raw: gateway.ExtractText(resp), usage: toModelUsage(resp.Usage)}
		resp.Usage.LogCost(modelID, op+"-primer")
	}

	rest := ids[1:]
	if len(rest) == 0 {
		return results, nil
	}

	reqs := make([]anthropic.BatchRequestItem, 0, len(rest))
	for _, id := range rest {
		reqs = append(reqs, anthropic.BatchRequestItem{
			CustomID: customID(op, id),
			Params:   a.messageRequest(modelID, prompts[id]),
		})
	}

	batch, err := a.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: reqs})
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create batch", op)
	}

	zap.L().Info("batch submitted",
		zap.String("operation", op),
		zap.String("batch_id", batch.ID),
		zap.Int("requests", len(reqs)),
	)

	batch, err = anthropic.PollBatch(ctx, a.client, batch.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: poll batch", op)
	}

	iter, err := a.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get batch results", op)
	}
	collected, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: collect batch results", op)
	}

	var roundUsage anthropic.TokenUsage
	for _, id := range rest {
		resp, ok := collected[customID(op, id)]
		if !ok || resp == nil {
			results[id] = roundResult{err: eris.Errorf("%s: batch item %s failed", op, id)}
			continue
		}
		roundUsage.InputTokens += resp.Usage.InputTokens
		roundUsage.OutputTokens += resp.Usage.OutputTokens
		roundUsage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
		roundUsage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens
		results[id] = roundResult{raw: gateway.ExtractText(resp), usage: toModelUsage(resp.Usage)}
	}
	roundUsage.LogCost(modelID, op+"-batch")

	return results, nil
}

func (a *Analyzer) messageRequest(modelID string, p prompt.Prompt) anthropic.MessageRequest {
	temp := a.aiCfg.Temperature
	return anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   a.aiCfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(p.System),
		Messages:    []anthropic.Message{{Role: "user", Content: p.Human}},
		Temperature: &temp,
	}
}

func customID(op, id string) string {
	return fmt.Sprintf("%s-%s", op, id)
}

func failAll(byID map[string]BatchResult, items []BatchItem, err error) map[string]BatchResult {
	for _, item := range items {
		if _, done := byID[item.ID]; !done {
			byID[item.ID] = BatchResult{ID: item.ID, Err: err}
		}
	}
	return byID
}

// deduplicateItems drops items whose cleaned text is identical to an
// earlier one. Returns the unique items and a map from the kept item's
// ID to the duplicate IDs that should inherit its result.
func deduplicateItems(items []BatchItem) ([]BatchItem, map[string][]string) {
	seen := make(map[string]string) // hash -> first ID
	dupes := make(map[string][]string)
	var unique []BatchItem

	for _, item := range items {
		h := contentHash(item.Text)
		if firstID, ok := seen[h]; ok {
			dupes[firstID] = append(dupes[firstID], item.ID)
			zap.L().Debug("batch: deduplicated transcript",
				zap.String("id", item.ID),
				zap.String("duplicate_of", firstID),
			)
			continue
		}
		seen[h] = item.ID
		unique = append(unique, item)
	}

	if removed := len(items) - len(unique); removed > 0 {
		zap.L().Info("batch: deduplicated transcripts",
			zap.Int("original", len(items)),
			zap.Int("unique", len(unique)),
		)
	}

	return unique, dupes
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func toModelUsage(u anthropic.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}
}
