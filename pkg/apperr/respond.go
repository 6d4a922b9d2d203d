package apperr

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func body(err error) (int, map[string]string) {
	if !IsDomain(err) {
		log.Printf("[ERROR] %v", err)
		return http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "Internal"}
	}
	return StatusCode(err), map[string]string{"error": err.Error(), "code": Code(err)}
}

// Respond writes err as JSON on a gin context and aborts the chain.
func Respond(c *gin.Context, err error) {
	status, payload := body(err)
	c.AbortWithStatusJSON(status, payload)
}

// WriteHTTP is the net/http counterpart of Respond.
func WriteHTTP(w http.ResponseWriter, err error) {
	status, payload := body(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
