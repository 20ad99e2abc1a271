package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind names one of the relationship networks of the remote service.
type Kind string

const (
	KindInvitations Kind = "invitations"
	KindVouches     Kind = "vouches"
	KindReviews     Kind = "reviews"
)

// Kinds returns every supported network in display order.
func Kinds() []Kind {
	return []Kind{KindInvitations, KindVouches, KindReviews}
}

// ParseKind accepts a kind name or a common singular alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "invitations", "invitation", "invites", "invite":
		return KindInvitations, nil
	case "vouches", "vouch":
		return KindVouches, nil
	case "reviews", "review":
		return KindReviews, nil
	}
	return "", fmt.Errorf("unknown graph kind: %q (use invitations, vouches or reviews)", s)
}

// Identity is an account in the remote network.
type Identity struct {
	ID          int64  `json:"id"`
	ProfileID   *int64 `json:"profileId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Score       int    `json:"score"`
}

// HasProfile reports whether the identity is a registered profile.
func (i Identity) HasProfile() bool {
	return i.ProfileID != nil
}

// Key is the canonical node key: the profile id, or the account id when
// the identity has no profile.
func (i Identity) Key() string {
	if i.ProfileID != nil {
		return strconv.FormatInt(*i.ProfileID, 10)
	}
	return "user-" + strconv.FormatInt(i.ID, 10)
}

// Label returns the best human-readable name.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Username != "":
		return "@" + i.Username
	}
	return i.Key()
}

// ProfileRef returns a pointer to a profile id, for building identities in code.
func ProfileRef(id int64) *int64 {
	return &id
}

// Sentiment is the category of a review.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Sentiments returns all review categories.
func Sentiments() []Sentiment {
	return []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}
}

// ParseSentiment parses a review category name.
func ParseSentiment(s string) (Sentiment, error) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, nil
	case SentimentNeutral:
		return SentimentNeutral, nil
	case SentimentNegative:
		return SentimentNegative, nil
	}
	return "", fmt.Errorf("unknown sentiment: %q", s)
}

// Record is a raw relationship as returned by the remote source.
// Level is assigned by the fetcher: 1 for the root's own relationships and
// connections between them, 2 for relationships of ring-1 identities.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Origin    Identity  `json:"origin"`
	Target    Identity  `json:"target"`
	Level     int       `json:"level"`
	Magnitude float64   `json:"magnitude,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	Archived  bool      `json:"archived,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role classifies a node by how it relates to the root.
type Role string

const (
	RoleRoot     Role = "root"
	RoleGiven    Role = "given"
	RoleReceived Role = "received"
	RoleBoth     Role = "both"
	RoleExtended Role = "extended"
)

// Node is the canonical entry for one identity.
type Node struct {
	Key      string   `json:"key"`
	Identity Identity `json:"identity"`
	Level    int      `json:"level"`
	IsRoot   bool     `json:"isRoot"`
	Role     Role     `json:"role"`
}

// Edge is a directed relationship between two node keys.
type Edge struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Level        int       `json:"level"`
	Magnitude    float64   `json:"magnitude,omitempty"`
	Sentiment    Sentiment `json:"sentiment,omitempty"`
	IsReciprocal bool      `json:"isReciprocal"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Graph is the canonical node/edge structure for one root and one kind.
// It is rebuilt from scratch whenever the record list changes.
type Graph struct {
	Kind    Kind   `json:"kind"`
	RootKey string `json:"rootKey"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Stats holds summary counts.
type Stats struct {
	Nodes      int
	Edges      int
	Reciprocal int
	ByLevel    map[int]int
	MaxLevel   int
}

// Root returns the root node. Every normalised graph has one.
func (g *Graph) Root() (Node, bool) {
	return g.Node(g.RootKey)
}

// Node looks up a node by key.
func (g *Graph) Node(key string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return Node{}, false
}

// Rings returns the toggleable levels present in the graph (2 and deeper), ascending.
func (g *Graph) Rings() []int {
	seen := make(map[int]bool)
	var rings []int
	for _, n := range g.Nodes {
		if n.Level >= 2 && !seen[n.Level] {
			seen[n.Level] = true
			rings = append(rings, n.Level)
		}
	}
	sortInts(rings)
	return rings
}

// GetStats returns summary statistics.
func (g *Graph) GetStats() Stats {
	s := Stats{Nodes: len(g.Nodes), Edges: len(g.Edges), ByLevel: make(map[int]int)}
	for _, n := range g.Nodes {
		s.ByLevel[n.Level]++
		if n.Level > s.MaxLevel {
			s.MaxLevel = n.Level
		}
	}
	for _, e := range g.Edges {
		if e.IsReciprocal {
			s.Reciprocal++
		}
	}
	return s
}
