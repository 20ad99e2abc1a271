package graph

import "context"

// Strategy captures what differs between the three networks. The fetcher,
// normalizer, filter and layout are shared and read these fields.
type Strategy struct {
	Kind Kind

	// InterRing fetches connections among ring-1 identities.
	InterRing bool
	// InterRingTwo fetches connections among ring-2 identities.
	InterRingTwo bool
	// RingTwoLimit caps records fetched per ring-1 profile.
	RingTwoLimit int
	// InferOriginLevels places identities seen only as record origins one
	// level above the record (floored at 1). Invitation trees need this for
	// the root's own inviter.
	InferOriginLevels bool
	// SentimentFiltered enables per-sentiment edge filtering.
	SentimentFiltered bool
	// Accept drops records the network treats as invalid. Nil accepts all.
	Accept func(Record) bool
}

// StrategyFor returns the strategy for a kind.
func StrategyFor(kind Kind) Strategy {
	switch kind {
	case KindVouches:
		return Strategy{
			Kind:         KindVouches,
			InterRing:    true,
			InterRingTwo: true,
			RingTwoLimit: 50,
			Accept:       funded,
		}
	case KindReviews:
		return Strategy{
			Kind:              KindReviews,
			InterRing:         true,
			RingTwoLimit:      100,
			SentimentFiltered: true,
			Accept:            active,
		}
	default:
		return Strategy{
			Kind:              KindInvitations,
			RingTwoLimit:      20,
			InferOriginLevels: true,
		}
	}
}

// Fetch runs q against src for this kind and drops records Accept rejects.
func (s Strategy) Fetch(ctx context.Context, src Source, q Query) ([]Record, error) {
	records, err := src.Relationships(ctx, s.Kind, q)
	if err != nil {
		return nil, err
	}
	if s.Accept == nil {
		return records, nil
	}
	kept := records[:0:0]
	for _, r := range records {
		if s.Accept(r) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// NewSentimentFilter returns the filter to use with this strategy, or nil
// when the kind has no sentiment.
func (s Strategy) NewSentimentFilter() SentimentFilter {
	if !s.SentimentFiltered {
		return nil
	}
	return AllSentiments()
}

func funded(r Record) bool {
	return !r.Archived && r.Magnitude > 0
}

func active(r Record) bool {
	return !r.Archived
}
