package httpapi

import (
	"net/http"

	"github.com/and161185/cosmetics-shop/internal/service"
)

func (a *API) submitContact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.contact.Submit(r.Context(), in); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Thank you for your message! We will get back to you soon.", nil)
}
