package campaign

import (
	"strings"
	"sync"
	"time"

	"github.com/cultcreative/deck/internal/localstate"
)

const tabsKey = "campaign.tabs"

// Tab is an open campaign view.
type Tab struct {
	CampaignID string    `json:"campaignId"`
	Title      string    `json:"title"`
	OpenedAt   time.Time `json:"openedAt"`
}

// Tabs keeps the open campaign tabs in local state so they survive restarts.
type Tabs struct {
	mu    sync.Mutex
	state *localstate.Store
	tabs  []Tab
	now   func() time.Time
}

// LoadTabs restores tabs from state. state may be nil.
func LoadTabs(state *localstate.Store) *Tabs {
	t := &Tabs{state: state, now: time.Now}
	state.Get(tabsKey, &t.tabs)
	return t
}

// Open adds a tab, or refreshes the title of an open one. Blank ids are
// ignored.
func (t *Tabs) Open(campaignID, title string) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.tabs {
		if t.tabs[i].CampaignID == campaignID {
			if title != "" {
				t.tabs[i].Title = title
			}
			t.persistLocked()
			return
		}
	}
	t.tabs = append(t.tabs, Tab{CampaignID: campaignID, Title: title, OpenedAt: t.now()})
	t.persistLocked()
}

// Close removes the tab for campaignID. It reports whether one was open.
func (t *Tabs) Close(campaignID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.tabs {
		if t.tabs[i].CampaignID == campaignID {
			t.tabs = append(t.tabs[:i], t.tabs[i+1:]...)
			t.persistLocked()
			return true
		}
	}
	return false
}

// List returns the open tabs in the order they were opened.
func (t *Tabs) List() []Tab {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Tab, len(t.tabs))
	copy(out, t.tabs)
	return out
}

func (t *Tabs) persistLocked() {
	if len(t.tabs) == 0 {
		t.state.Delete(tabsKey)
		return
	}
	t.state.Set(tabsKey, t.tabs)
}
