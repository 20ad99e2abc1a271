package ethos

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/msalah0e/trustmap/internal/graph"
)

type wireIdentity struct {
	ID          int64   `json:"id"`
	ProfileID   *int64  `json:"profileId"`
	DisplayName string  `json:"displayName"`
	Username    *string `json:"username"`
	AvatarURL   string  `json:"avatarUrl"`
	Score       int     `json:"score"`
}

func (w wireIdentity) identity() graph.Identity {
	id := graph.Identity{
		ID:          w.ID,
		ProfileID:   w.ProfileID,
		DisplayName: w.DisplayName,
		AvatarURL:   w.AvatarURL,
		Score:       w.Score,
	}
	if w.Username != nil {
		id.Username = *w.Username
	}
	return id
}

type wirePage struct {
	Values []wireRecord `json:"values"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type wireRecord struct {
	ID               json.RawMessage `json:"id"`
	AuthorProfileID  *int64          `json:"authorProfileId"`
	SubjectProfileID *int64          `json:"subjectProfileId"`
	Author           wireIdentity    `json:"author"`
	Subject          wireIdentity    `json:"subject"`
	CreatedAt        int64           `json:"createdAt"`
	Archived         bool            `json:"archived"`

	// vouches
	Balance string `json:"balance"`
	// reviews
	Score string `json:"score"`
}

func (w wireRecord) record(kind graph.Kind) graph.Record {
	origin, target := w.Author.identity(), w.Subject.identity()
	if origin.ProfileID == nil {
		origin.ProfileID = w.AuthorProfileID
	}
	if target.ProfileID == nil {
		target.ProfileID = w.SubjectProfileID
	}

	r := graph.Record{
		ID:       strings.Trim(string(w.ID), `"`),
		Kind:     kind,
		Origin:   origin,
		Target:   target,
		Archived: w.Archived,
	}
	if w.CreatedAt > 0 {
		r.CreatedAt = time.Unix(w.CreatedAt, 0).UTC()
	}

	switch kind {
	case graph.KindVouches:
		if v, err := strconv.ParseFloat(w.Balance, 64); err == nil {
			r.Magnitude = v
		}
	case graph.KindReviews:
		if s, err := graph.ParseSentiment(w.Score); err == nil {
			r.Sentiment = s
		}
	}
	return r
}
