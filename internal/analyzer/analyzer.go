// Package analyzer orchestrates transcript analysis: classification on
// the cheap model tier, rubric scoring on the strong tier, and
// normalization of the results.
package analyzer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/config"
	"github.com/kolektra/callqa/internal/gateway"
	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/prompt"
	"github.com/kolektra/callqa/internal/transcript"
	"github.com/kolektra/callqa/pkg/anthropic"
)

const (
	opClassify = "classify"
	opScore    = "score"
)

// ErrInvalidScenario is returned when scoring is requested with a
// scenario type outside the closed set.
var ErrInvalidScenario = eris.New("analyzer: invalid scenario type")

// Analyzer runs the two-pass analysis over call transcripts. Stateless
// between calls; safe for concurrent use across transcripts.
type Analyzer struct {
	client     anthropic.Client
	classifyGW *gateway.Gateway
	scoreGW    *gateway.Gateway
	aiCfg      config.AnthropicConfig
	scoring    config.ScoringConfig
}

// New builds an Analyzer with one gateway per model tier.
func New(client anthropic.Client, aiCfg config.AnthropicConfig, scoring config.ScoringConfig) *Analyzer {
	return &Analyzer{
		client: client,
		classifyGW: gateway.New(client, gateway.Config{
			Model:          aiCfg.ClassifyModel,
			MaxTokens:      aiCfg.MaxTokens,
			Temperature:    aiCfg.Temperature,
			RepairAttempts: aiCfg.RepairAttempts,
		}),
		scoreGW: gateway.New(client, gateway.Config{
			Model:          aiCfg.ScoreModel,
			MaxTokens:      aiCfg.MaxTokens,
			Temperature:    aiCfg.Temperature,
			RepairAttempts: aiCfg.RepairAttempts,
		}),
		aiCfg:   aiCfg,
		scoring: scoring,
	}
}

// ExtractBasic classifies a transcript and extracts basic call info.
// The returned CallData satisfies the one-of detail constraint.
func (a *Analyzer) ExtractBasic(ctx context.Context, text string) (*model.CallData, model.TokenUsage, error) {
	p, err := prompt.Classification(text)
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	cd, usage, err := gateway.RequestStructured[model.CallData](ctx, a.classifyGW, opClassify, p)
	if err != nil {
		return nil, usage, err
	}

	crossCheckAmounts(text, cd)

	zap.L().Info("transcript classified",
		zap.String("scenario", string(cd.BasicInfo.ScenarioType)),
		zap.Int("amounts_mentioned", len(cd.BasicInfo.AmountsMentioned)),
	)
	return cd, usage, nil
}

// ScoreCall scores a transcript against the rubric for an
// already-determined scenario. The scenario is fixed before the call;
// no reclassification happens here.
func (a *Analyzer) ScoreCall(ctx context.Context, text string, scenario model.ScenarioType) (*model.QAScore, model.TokenUsage, error) {
	if !scenario.Valid() {
		return nil, model.TokenUsage{}, eris.Wrapf(ErrInvalidScenario, "%q", scenario)
	}

	p, err := prompt.Scoring(text, scenario)
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	qs, usage, err := gateway.RequestStructured[model.QAScore](ctx, a.scoreGW, opScore, p)
	if err != nil {
		return nil, usage, err
	}

	qs = Normalize(qs, a.scoring)

	zap.L().Info("transcript scored",
		zap.String("scenario", string(scenario)),
		zap.Float64("total_score", qs.TotalScore),
		zap.Bool("knockout", qs.KnockoutViolations.Any()),
	)
	return qs, usage, nil
}

// Analysis is the combined output of one full transcript analysis.
type Analysis struct {
	Transcript string              `json:"transcript"`
	Metadata   transcript.Metadata `json:"metadata"`
	Call       *model.CallData     `json:"call"`
	Score      *model.QAScore      `json:"score"`
	Usage      model.TokenUsage    `json:"usage"`
}

// Analyze runs the full pipeline: classify, then score with the
// classified scenario.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	cd, classifyUsage, err := a.ExtractBasic(ctx, text)
	if err != nil {
		return nil, err
	}

	qs, scoreUsage, err := a.ScoreCall(ctx, text, cd.BasicInfo.ScenarioType)
	if err != nil {
		return nil, err
	}

	usage := classifyUsage
	usage.Add(scoreUsage)

	return &Analysis{
		Transcript: text,
		Metadata:   transcript.ExtractMetadata(text),
		Call:       cd,
		Score:      qs,
		Usage:      usage,
	}, nil
}

// crossCheckAmounts compares the model's extracted amounts against the
// regex heuristics and logs disagreements for review.
func crossCheckAmounts(text string, cd *model.CallData) {
	heuristic := transcript.ExtractAmounts(transcript.Clean(text))
	if len(heuristic) > 0 && len(cd.BasicInfo.AmountsMentioned) == 0 {
		zap.L().Warn("model extracted no amounts but transcript mentions rupiah figures",
			zap.Int("heuristic_amounts", len(heuristic)),
			zap.Float64("first_value", heuristic[0].Value),
		)
	}
}
