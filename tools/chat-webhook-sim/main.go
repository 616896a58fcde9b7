package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Local stand-in for the chat platform's send endpoint. Point
// CHAT_WEBHOOK_URL at it and every outgoing message is printed instead of
// delivered.
func main() {
	var (
		addr  = flag.String("addr", getenv("ADDR", ":9090"), "listen address")
		token = flag.String("token", getenv("CHAT_WEBHOOK_TOKEN", ""), "expected bearer token (empty accepts all)")
	)
	flag.Parse()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if *token != "" && r.Header.Get("Authorization") != "Bearer "+*token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var msg struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		fmt.Printf("%s  chat_id=%s\n%s\n\n", time.Now().Format(time.RFC3339), msg.ChatID, msg.Text)
		w.WriteHeader(http.StatusNoContent)
	})

	fmt.Printf("chat webhook sim listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fatal(err.Error())
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
