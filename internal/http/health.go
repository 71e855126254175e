package http

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func HandleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}
