package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/steward/internal/vectorstore"
)

// searchIndex runs one similarity query and returns the hit ids in rank
// order plus their scores. Hits below threshold are dropped; a missing
// collection means nothing was ever indexed and yields no hits.
func (s *Store) searchIndex(ctx context.Context, userID, collection string, vec []float32, threshold float64, count int) ([]string, map[string]float64, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := s.checkEmbedding(vec, true); err != nil {
		return nil, nil, err
	}
	if count <= 0 {
		count = 5
	}

	results, err := s.index.SearchVector(s.userCtx(ctx, userID), collection, vec, count, nil)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	ids := make([]string, 0, len(results))
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		sim := float64(r.Score)
		if sim < threshold {
			continue
		}
		ids = append(ids, r.ID)
		scores[r.ID] = sim
	}
	return ids, scores, nil
}

// SearchSimilarDecisions finds past decisions whose input summaries are
// similar to the query embedding. Hits are hydrated from sqlite, so a
// stale index entry for a deleted row silently drops out.
func (s *Store) SearchSimilarDecisions(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]DecisionMatch, error) {
	ctx, span := tracer.Start(ctx, "knowledge.SearchSimilarDecisions")
	defer span.End()

	ids, scores, err := s.searchIndex(ctx, userID, vectorstore.CollectionDecisions, queryEmbedding, threshold, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	decisions, err := s.GetDecisionsByIDs(ctx, userID, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches := make([]DecisionMatch, 0, len(decisions))
	for _, d := range decisions {
		matches = append(matches, DecisionMatch{Decision: *d, Similarity: scores[d.ID]})
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// SearchSimilarRules finds active rules similar to the query embedding.
// Rules that decayed to inactive stay indexed until retention removes
// them, so inactive hits are filtered out after hydration.
func (s *Store) SearchSimilarRules(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]RuleMatch, error) {
	ctx, span := tracer.Start(ctx, "knowledge.SearchSimilarRules")
	defer span.End()

	ids, scores, err := s.searchIndex(ctx, userID, vectorstore.CollectionRules, queryEmbedding, threshold, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rules, err := s.GetRulesByIDs(ctx, userID, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches := make([]RuleMatch, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		matches = append(matches, RuleMatch{Rule: *r, Similarity: scores[r.ID]})
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// SearchSimilarPreferences finds stored preferences similar to the query
// embedding.
func (s *Store) SearchSimilarPreferences(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]PreferenceMatch, error) {
	ctx, span := tracer.Start(ctx, "knowledge.SearchSimilarPreferences")
	defer span.End()

	ids, scores, err := s.searchIndex(ctx, userID, vectorstore.CollectionPreferences, queryEmbedding, threshold, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	prefs, err := s.GetPreferencesByIDs(ctx, userID, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches := make([]PreferenceMatch, 0, len(prefs))
	for _, p := range prefs {
		matches = append(matches, PreferenceMatch{Preference: *p, Similarity: scores[p.ID]})
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// SearchSimilarCorrections finds owner corrections similar to the query
// embedding.
func (s *Store) SearchSimilarCorrections(ctx context.Context, queryEmbedding []float32, userID string, threshold float64, count int) ([]CorrectionMatch, error) {
	ctx, span := tracer.Start(ctx, "knowledge.SearchSimilarCorrections")
	defer span.End()

	ids, scores, err := s.searchIndex(ctx, userID, vectorstore.CollectionMemories, queryEmbedding, threshold, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	corrections, err := s.GetCorrectionsByIDs(ctx, userID, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches := make([]CorrectionMatch, 0, len(corrections))
	for _, c := range corrections {
		matches = append(matches, CorrectionMatch{Correction: *c, Similarity: scores[c.ID]})
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}
