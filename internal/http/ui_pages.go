package httpx

import (
	"net/http"
	"time"
)

type catalogItem struct {
	ID          string
	Name        string
	Description string
	Price       string
}

type catalogView struct {
	Heading string
	Intro   string
	Items   []catalogItem
}

type portalView struct {
	Heading  string
	Audience string
	// ProfileUpdated is zero when the visitor has no profile.
	ProfileUpdated time.Time
}

//nolint:gochecknoglobals // static placeholder catalog
var featuredKits = []catalogItem{
	{ID: "kit-primary", Name: "Primary school kit", Description: "Pencils, crayons, glue stick and ruler.", Price: "$24.00"},
	{ID: "kit-secondary", Name: "Secondary school kit", Description: "Binders, calculator, geometry set.", Price: "$39.00"},
	{ID: "kit-art", Name: "Art class kit", Description: "Sketchbook, watercolours and brushes.", Price: "$18.50"},
}

// Home renders the storefront landing page.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data, ok := h.newPage(w, r, PageMeta{Title: "Home", PageTitle: "Scolay", CurrentPage: PageHome})
	if !ok {
		return
	}
	data.Catalog = &catalogView{
		Heading: "Featured kits",
		Intro:   "Everything your class list asks for, in one order.",
		Items:   featuredKits,
	}
	h.renderPage(w, r, data)
}

// Schools renders the schools directory.
func (h *UIHandlers) Schools(w http.ResponseWriter, r *http.Request) {
	data, ok := h.newPage(w, r, PageMeta{Title: "Schools", PageTitle: "Schools", CurrentPage: PageSchools})
	if !ok {
		return
	}
	data.Catalog = &catalogView{
		Heading: "Schools",
		Intro:   "Find your school to see its published supply lists.",
	}
	h.renderPage(w, r, data)
}

// Suppliers renders the suppliers directory.
func (h *UIHandlers) Suppliers(w http.ResponseWriter, r *http.Request) {
	data, ok := h.newPage(w, r, PageMeta{Title: "Suppliers", PageTitle: "Suppliers", CurrentPage: PageSuppliers})
	if !ok {
		return
	}
	data.Catalog = &catalogView{
		Heading: "Suppliers",
		Intro:   "Browse the stationers and bookshops that fulfil Scolay orders.",
	}
	h.renderPage(w, r, data)
}

// Portal returns a handler for a role portal placeholder page. Portals are not
// access-controlled; the navbar only decides who sees the link.
func (h *UIHandlers) Portal(page, title, audience string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := h.newPage(w, r, PageMeta{Title: title, PageTitle: title, CurrentPage: page})
		if !ok {
			return
		}
		view := &portalView{Heading: title, Audience: audience}
		if ac, err := AuthContextFrom(r.Context()); err == nil {
			if p := ac.Snapshot().Profile; p != nil {
				view.ProfileUpdated = p.UpdatedAt
			}
		}
		data.Portal = view
		h.renderPage(w, r, data)
	}
}
