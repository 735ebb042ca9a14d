package fetcher

import (
	"miniflux.app/client"
)

type MinifluxInfo struct {
	Endpoint string
	ApiKey   string
	// Category limits the entries to one miniflux category, 0 means all.
	Category int64
	Limit    int
}

type Miniflux struct {
	client   *client.Client
	category int64
	limit    int
}

func NewMiniflux(mflInfo MinifluxInfo) *Miniflux {
	return &Miniflux{
		client:   client.New(mflInfo.Endpoint, mflInfo.ApiKey),
		category: mflInfo.Category,
		limit:    mflInfo.Limit,
	}
}

func (m *Miniflux) Unread() ([]FeedEntry, error) {
	filter := &client.Filter{
		Status:     client.EntryStatusUnread,
		CategoryID: m.category,
		Limit:      m.limit,
		Order:      "published_at",
		Direction:  "asc",
	}
	result, err := m.client.Entries(filter)
	if err != nil {
		return []FeedEntry{}, err
	}

	entries := make([]FeedEntry, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, FeedEntry{
			EntryID: entry.ID,
			FeedID:  entry.FeedID,
			URL:     entry.URL,
			Title:   entry.Title,
		})
	}

	return entries, nil
}

func (m *Miniflux) MarkRead(entryIDs ...int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return m.client.UpdateEntries(entryIDs, client.EntryStatusRead)
}
