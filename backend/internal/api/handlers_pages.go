package api

import (
	"net/http"

	"thermonode/backend/pkg/router"
	"thermonode/web"
)

func (h *Handler) RegisterRootPage(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getRootPage",
		Summary:     "Root page",
		Description: "Shows the current temperature, refreshed every five seconds",
		Group:       PagesGroup,
		Handler:     h.pages.Page(web.IndexPage),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {Description: "HTML page", ContentType: "text/html", Type: ""},
		},
	})
}

func (h *Handler) RegisterSettingsPage(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getSettingsPage",
		Summary:     "Settings page",
		Description: "Form that edits the node settings",
		Group:       PagesGroup,
		Handler:     h.pages.Page(web.SettingsPage),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {Description: "HTML page", ContentType: "text/html", Type: ""},
		},
	})
}

// NotFound answers unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	RespondText(w, r, http.StatusNotFound, "Not found!")
}
