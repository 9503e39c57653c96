package viewmodel

import (
	"strconv"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/service"
)

// NavLink is a single navigation entry.
type NavLink struct {
	Label  string
	Href   string
	Active bool
}

// Navbar is everything the navbar partial needs to render.
type Navbar struct {
	Brand NavLink
	// Links holds the primary links followed by the role link, if any.
	Links    []NavLink
	RoleLink *NavLink

	SignedIn    bool
	DisplayName string
	// AuthLinks are Login and Sign Up, present only when signed out.
	AuthLinks []NavLink

	Cart          NavLink
	CartCount     int
	ShowCartBadge bool

	MobileOpen bool
	// ToggleURL fetches the navbar with the mobile menu flipped.
	ToggleURL string
	// CloseURL fetches the navbar with the mobile menu closed.
	CloseURL string
}

// CartBadge returns the badge text.
func (n Navbar) CartBadge() string { return strconv.Itoa(n.CartCount) }

// NavbarInput is the state the navbar is derived from.
type NavbarInput struct {
	State       service.AuthState
	DisplayName string
	CartCount   int
	MobileOpen  bool
	CurrentPath string
}

const (
	PathHome          = "/"
	PathSchools       = "/schools"
	PathSuppliers     = "/suppliers"
	PathAdmin         = "/admin"
	PathSchoolAdmin   = "/school-admin"
	PathSupplierAdmin = "/supplier-admin"
	PathCart          = "/cart"
	PathLogin         = "/login"
	PathSignup        = "/signup"
	PathNavbarPartial = "/ui/navbar"
)

// roleLinks maps each portal role to its navbar entry.
var roleLinks = map[domainauth.Role]NavLink{
	domainauth.RoleAdmin:         {Label: "Admin", Href: PathAdmin},
	domainauth.RoleSchoolAdmin:   {Label: "School Portal", Href: PathSchoolAdmin},
	domainauth.RoleSupplierAdmin: {Label: "Supplier Portal", Href: PathSupplierAdmin},
}

// RoleLink returns the portal link for role, if it has one.
func RoleLink(role domainauth.Role) (NavLink, bool) {
	l, ok := roleLinks[role]
	return l, ok
}

// BuildNavbar derives the navbar from the auth snapshot, cart count and mobile flag.
// It has no side effects.
func BuildNavbar(in NavbarInput) Navbar {
	link := func(label, href string) NavLink {
		return NavLink{Label: label, Href: href, Active: in.CurrentPath == href}
	}

	nav := Navbar{
		Brand:      NavLink{Label: "Scolay", Href: PathHome},
		SignedIn:   in.State.SignedIn(),
		Cart:       link("Cart", PathCart),
		CartCount:  in.CartCount,
		MobileOpen: in.MobileOpen,
		CloseURL:   PathNavbarPartial + "?mobile=closed",
	}
	if in.CartCount > 0 {
		nav.ShowCartBadge = true
	}

	nav.Links = []NavLink{
		link("Home", PathHome),
		link("Schools", PathSchools),
		link("Suppliers", PathSuppliers),
	}
	if rl, ok := RoleLink(in.State.Role()); ok {
		rl.Active = in.CurrentPath == rl.Href
		nav.RoleLink = &rl
		nav.Links = append(nav.Links, rl)
	}

	if nav.SignedIn {
		nav.DisplayName = in.DisplayName
	} else {
		nav.AuthLinks = []NavLink{
			link("Login", PathLogin),
			link("Sign Up", PathSignup),
		}
	}

	if in.MobileOpen {
		nav.ToggleURL = PathNavbarPartial + "?mobile=closed"
	} else {
		nav.ToggleURL = PathNavbarPartial + "?mobile=open"
	}
	return nav
}
