package main

import (
	"encoding/json"
	"log"

	"werewolfsim/internal/game"
)

// Notice levels
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// renderNotice encodes a notice frame for a websocket client
func renderNotice(level, text string) []byte {
	data, err := json.Marshal(wsFrame{Type: frameNotice, Level: level, Text: text})
	if err != nil {
		log.Printf("Failed to render notice: %v", err)
		return nil
	}
	return data
}

// sendNotice sends a notice to every connection of a seat
func sendNotice(h *Hub, seat game.Seat, level, message string) {
	if data := renderNotice(level, message); data != nil {
		h.sendToSeat(seat, data)
	}
}

func sendErrorNotice(h *Hub, seat game.Seat, message string) {
	sendNotice(h, seat, NoticeError, message)
}
