package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"werewolfsim/internal/game"
)

const seatCookieName = "werewolf_seat"

var errNoCode = errors.New("no seat code")

func generateSecretCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// seatCookie remembers a claimed code so a reconnect needs no query string.
func seatCookie(code string) *http.Cookie {
	return &http.Cookie{
		Name:     seatCookieName,
		Value:    code,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// codeFromRequest reads the claim code from ?code= or, failing that, the cookie.
func codeFromRequest(r *http.Request) (string, error) {
	if code := r.URL.Query().Get("code"); code != "" {
		return code, nil
	}
	cookie, err := r.Cookie(seatCookieName)
	if err != nil || cookie.Value == "" {
		return "", errNoCode
	}
	return cookie.Value, nil
}

// seatFromRequest resolves the seat a websocket client is allowed to play.
func seatFromRequest(r *http.Request, claim func(code string) (game.Seat, error)) (game.Seat, string, error) {
	code, err := codeFromRequest(r)
	if err != nil {
		return 0, "", err
	}
	seat, err := claim(code)
	if err != nil {
		return 0, "", err
	}
	return seat, code, nil
}
