package models

import (
	"fmt"
	"strings"
)

const watchURLFormat = "https://play.afreecatv.com/%s/%s"

type Alert struct {
	Title string
	Body  string
}

func AlertFor(accountID string, status LiveStatus) Alert {
	lines := []string{
		"Now streaming!",
		"Title: " + status.Title,
		"Category: " + status.Category,
	}
	if status.BroadcastNo != "" {
		lines = append(lines, fmt.Sprintf(watchURLFormat, accountID, status.BroadcastNo))
	}
	return Alert{
		Title: "Live: " + accountID,
		Body:  strings.Join(lines, "\n"),
	}
}
