package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// Notifier dispatches fire-and-forget event notifications. Failures are
// logged and swallowed; callers never block on or observe them.
type Notifier interface {
	TripCreated(tripID, userID string)
	TopupSettled(userID string, points int64, reference string)
}

// DiscordNotifier posts embeds to a Discord webhook. A missing webhook URL
// disables dispatch entirely.
type DiscordNotifier struct {
	client *http.Client
}

func NewDiscordNotifier() *DiscordNotifier {
	return &DiscordNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Timestamp   string        `json:"timestamp"`
	Footer      discordFooter `json:"footer"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *DiscordNotifier) TripCreated(tripID, userID string) {
	n.send(fmt.Sprintf("New trip saved: %s", tripID), discordEmbed{
		Title:       "Trip Created",
		Description: fmt.Sprintf("Trip `%s` saved by user `%s`", tripID, userID),
		Color:       0x3b82f6,
	})
}

func (n *DiscordNotifier) TopupSettled(userID string, points int64, reference string) {
	n.send(fmt.Sprintf("Top-up settled: %s", reference), discordEmbed{
		Title:       "Points Top-up",
		Description: fmt.Sprintf("User `%s` credited %d points (ref %s)", userID, points, reference),
		Color:       0x22c55e,
	})
}

func (n *DiscordNotifier) send(content string, embed discordEmbed) {
	webhookURL := viper.GetString("discord.webhook_url")
	if webhookURL == "" {
		log.Println("[NOTIFY] Discord webhook URL not set, skipping notification")
		return
	}

	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	embed.Footer = discordFooter{Text: "Itinero System"}

	payload, err := json.Marshal(map[string]any{
		"content": content,
		"embeds":  []discordEmbed{embed},
	})
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal notification: %v", err)
		return
	}

	resp, err := n.client.Post(webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("[NOTIFY] Discord notification failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] Discord webhook returned status %d", resp.StatusCode)
	}
}
