// Package workspace manages the notebook tree and its persistence: the
// structural metadata lives under one key, page content and previews under
// one key each, so opening a page never deserializes the whole workspace.
package workspace

import (
	"time"

	"github.com/nathsir75/mmap/internal/typeid"
)

// StateVersion is stamped on the persisted workspace metadata.
const StateVersion = 1

// Page is one canvas. Content is stored separately under its content key.
type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Order     int       `json:"order"`
	Mindmap   bool      `json:"mindmap,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Section groups pages inside a notebook.
type Section struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Order int     `json:"order"`
	Pages []*Page `json:"pages"`
}

// Notebook is the top of the tree.
type Notebook struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Order    int        `json:"order"`
	Sections []*Section `json:"sections"`
}

// State is the serialized workspace metadata.
type State struct {
	V            int         `json:"v"`
	Notebooks    []*Notebook `json:"notebooks"`
	ActivePageID string      `json:"activePageId,omitempty"`
}

// NewState builds a starter workspace with one notebook, section and page
// so a first launch lands on an editable canvas.
func NewState(now time.Time) *State {
	page := &Page{
		ID:        typeid.NewPageID(),
		Title:     "Untitled page",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return &State{
		V: StateVersion,
		Notebooks: []*Notebook{{
			ID:    typeid.NewNotebookID(),
			Title: "My notebook",
			Sections: []*Section{{
				ID:    typeid.NewSectionID(),
				Title: "Notes",
				Pages: []*Page{page},
			}},
		}},
		ActivePageID: page.ID,
	}
}

func (s *State) notebook(id string) *Notebook {
	for _, nb := range s.Notebooks {
		if nb.ID == id {
			return nb
		}
	}
	return nil
}

func (s *State) section(id string) (*Notebook, *Section) {
	for _, nb := range s.Notebooks {
		for _, sec := range nb.Sections {
			if sec.ID == id {
				return nb, sec
			}
		}
	}
	return nil, nil
}

func (s *State) page(id string) (*Section, *Page) {
	for _, nb := range s.Notebooks {
		for _, sec := range nb.Sections {
			for _, p := range sec.Pages {
				if p.ID == id {
					return sec, p
				}
			}
		}
	}
	return nil, nil
}

// Pages returns every page in the workspace in tree order.
func (s *State) Pages() []*Page {
	var out []*Page
	for _, nb := range s.Notebooks {
		for _, sec := range nb.Sections {
			out = append(out, sec.Pages...)
		}
	}
	return out
}
