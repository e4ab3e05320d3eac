package main

import "log"

// sendToast sends a notification to one connection. Level is "error",
// "warning", "success" or "info".
func sendToast(client *Client, level, message string) {
	if err := client.send(OutMessage{Type: "toast", Level: level, Text: message}); err != nil {
		log.Printf("Failed to send toast to %s: %v", client.participant.Name, err)
	}
}

// sendErrorToast sends an error toast to a specific connection
func sendErrorToast(client *Client, message string) {
	sendToast(client, "error", message)
}
