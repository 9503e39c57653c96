package viewmodel

// User represents the signed-in user exposed to templates.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
}

// Layout captures shared chrome metadata (titles, navigation, auth flags).
type Layout struct {
	Title       string
	PageTitle   string
	CurrentPage string
	CurrentPath string
	CSRFToken   string
	// Loading is true while the browser's initial session check is in flight;
	// the layout then renders a placeholder instead of the page.
	Loading         bool
	IsAuthenticated bool
	User            *User
	Nav             Navbar
}

// LayoutProvider exposes layout metadata for renderer utilities.
type LayoutProvider interface {
	LayoutData() *Layout
}

// LayoutData implements LayoutProvider.
func (l *Layout) LayoutData() *Layout { return l }
