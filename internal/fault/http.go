package fault

import (
	"encoding/json"
	"io"
	"net/http"
)

// wire is the JSON shape every handler writes on failure and every client
// decodes back into a Fault.
type wire struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusFor maps a kind to its default HTTP status.
func statusFor(f *Fault) int {
	if f.StatusCode != 0 {
		return f.StatusCode
	}
	switch f.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindState, KindConflict, KindAvailability:
		return http.StatusConflict
	case KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON answers an HTTP request with the wire form of err. Errors that
// are not Faults are reported as internal failures without leaking detail.
func WriteJSON(w http.ResponseWriter, err error) {
	f, ok := As(err)
	if !ok {
		f = &Fault{Kind: KindRequest, Message: "internal error", StatusCode: http.StatusInternalServerError}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(f))
	_ = json.NewEncoder(w).Encode(wire{Code: string(f.Kind), Error: f.Message})
}

// FromResponse turns a non-2xx response into a Fault. A payload carrying a
// known code is reconstructed with its original kind so the taxonomy
// survives the hop; anything else becomes a request fault with the server's
// message when present.
func FromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload wire
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		if knownKind(payload.Code) {
			return &Fault{Kind: Kind(payload.Code), Message: payload.Error, StatusCode: resp.StatusCode}
		}
		return Request(resp.StatusCode, "%s", payload.Error)
	}
	return Request(resp.StatusCode, "request failed with status %d", resp.StatusCode)
}
