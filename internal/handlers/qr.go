package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// RegistrationCard renders a QR code for the front desk. Scanning it opens
// the registration's usage so staff can see the remaining lessons.
func (a *API) RegistrationCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure registration exists
	if _, err := a.Registrations.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	url := "http://" + r.Host + "/registrations/" + id + "/usage"

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate qr", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
