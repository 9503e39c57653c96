package httpx

// Page identifiers used in templates and navigation.
const (
	PageHome          = "home"
	PageSchools       = "schools"
	PageSuppliers     = "suppliers"
	PageAdmin         = "admin"
	PageSchoolAdmin   = "school-admin"
	PageSupplierAdmin = "supplier-admin"
	PageCart          = "cart"
	PageLogin         = "login"
	PageSignup        = "signup"
	PageNotFound      = "not-found"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"
	TemplatePathFromTest = "../../frontend/templates"
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:          "home-content",
	PageSchools:       "catalog-content",
	PageSuppliers:     "catalog-content",
	PageAdmin:         "portal-content",
	PageSchoolAdmin:   "portal-content",
	PageSupplierAdmin: "portal-content",
	PageCart:          "cart-content",
	PageLogin:         "login-content",
	PageSignup:        "signup-content",
	PageNotFound:      "not-found-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Unknown pages render the not-found content.
func ContentTemplateFor(currentPage string) string {
	if name, ok := ContentTemplateMap()[currentPage]; ok {
		return name
	}
	return "not-found-content"
}
