package core

import (
	"context"
	"fmt"
	"time"
)

// RecentLimit caps the number of recent entries reported by Stats.
const RecentLimit = 10

// RecentURL is a recent mapping with its destination redacted.
type RecentURL struct {
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   Expiry    `json:"expiresAt"`
	ClickCount  int64     `json:"clickCount"`
	IsActive    bool      `json:"isActive"`
}

// Stats aggregates the whole mapping set at call time.
type Stats struct {
	TotalURLs   int64       `json:"totalUrls"`
	TotalClicks int64       `json:"totalClicks"`
	ActiveURLs  int64       `json:"activeUrls"`
	ExpiredURLs int64       `json:"expiredUrls"`
	RecentURLs  []RecentURL `json:"recentUrls"`
}

// Stats computes totals over every stored mapping plus the most recent ones.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	now := s.nowFunc()

	st := &Stats{TotalURLs: int64(len(all)), RecentURLs: []RecentURL{}}
	for _, m := range all {
		st.TotalClicks += m.ClickCount
		if m.ExpiresAt.ActiveAt(now) {
			st.ActiveURLs++
		}
	}
	st.ExpiredURLs = st.TotalURLs - st.ActiveURLs

	recent, err := s.store.FindRecent(ctx, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	for _, m := range recent {
		st.RecentURLs = append(st.RecentURLs, RecentURL{
			ShortCode:   m.ShortCode,
			OriginalURL: RedactURL(m.OriginalURL),
			CreatedAt:   m.CreatedAt,
			ExpiresAt:   m.ExpiresAt,
			ClickCount:  m.ClickCount,
			IsActive:    m.ExpiresAt.ActiveAt(now),
		})
	}
	return st, nil
}

// LabelReport groups the mappings carrying one label.
type LabelReport struct {
	Label    string     `json:"label"`
	Total    int64      `json:"total"`
	Active   int64      `json:"active"`
	Mappings []*Mapping `json:"mappings"`
}

// LabelSummary counts and lists the mappings grouped under label.
func (s *Service) LabelSummary(ctx context.Context, label string) (*LabelReport, error) {
	total, err := s.store.CountByLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("count by label: %w", err)
	}
	all, err := s.store.FindByLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	active, err := s.store.FindActiveByLabel(ctx, label, s.nowFunc())
	if err != nil {
		return nil, fmt.Errorf("active by label: %w", err)
	}
	if all == nil {
		all = []*Mapping{}
	}
	return &LabelReport{Label: label, Total: total, Active: int64(len(active)), Mappings: all}, nil
}
