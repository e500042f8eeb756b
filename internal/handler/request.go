package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decodeJSON: %w", err)
	}
	return nil
}
