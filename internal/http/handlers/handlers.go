// Package handlers holds helpers shared by the per-area handler packages.
package handlers

import (
	"github.com/movieflix/movieflix-service/internal/session"
)

// PageData builds the base template data for a page: identity fields plus
// the first flash found under the given keys. Reading consumes the flash.
func PageData(sess *session.Session, flashKeys ...string) map[string]any {
	data := map[string]any{
		"LoggedIn": sess.IsLoggedIn(),
		"Username": sess.Username(),
	}
	for _, key := range flashKeys {
		if f, ok := sess.GetFlash(key); ok {
			data["Flash"] = f
			break
		}
	}
	return data
}
