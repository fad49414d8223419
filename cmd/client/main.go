package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/robaro12345/SafeTalk/client/config"
	"github.com/robaro12345/SafeTalk/client/network"
	"github.com/robaro12345/SafeTalk/client/reconcile"
	"github.com/robaro12345/SafeTalk/internal/domain"
)

var (
	username string
	password string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "safetalk-client",
		Short: "SafeTalk terminal chat client",
		Run:   runClient,
	}

	cobra.OnInitialize(config.LoadConfig)

	rootCmd.Flags().StringVarP(&username, "username", "u", "", "account username (required)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "account password (required)")
	rootCmd.MarkFlagRequired("username")
	rootCmd.MarkFlagRequired("password")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) {
	apiURL := config.Cfg.Server.APIURL
	serverURL := config.Cfg.Server.URL

	token, self, err := login(apiURL, username, password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("Logged in as %s (%s)", self.Username, self.ID)

	netClient := network.NewClient()
	timeline := reconcile.NewTimeline()
	attachHandlers(netClient, timeline, self.ID)

	if err := netClient.Connect(serverURL, token); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer netClient.Close()

	handleStdin(netClient, timeline)
}

type loginResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Token string         `json:"token"`
		User  domain.UserRef `json:"user"`
	} `json:"data"`
	Message string `json:"message"`
}

func login(apiURL, username, password string) (string, domain.UserRef, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(apiURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", domain.UserRef{}, err
	}
	defer resp.Body.Close()

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.UserRef{}, err
	}
	if !parsed.Success {
		return "", domain.UserRef{}, fmt.Errorf("server rejected login: %s", parsed.Message)
	}
	return parsed.Data.Token, parsed.Data.User, nil
}

// attachHandlers wires server events into the timeline and the console.
// Every subscription's detach is deferred by the caller's lifetime via
// netClient.Close; handles are kept so reconnect logic could detach cleanly.
func attachHandlers(c *network.Client, timeline *reconcile.Timeline, selfID uuid.UUID) {
	c.On(domain.EventMessageSent, func(raw json.RawMessage) {
		var view domain.View
		if err := json.Unmarshal(raw, &view); err != nil {
			return
		}
		timeline.OnConfirmed(view.TempID, view)
		printLine(fmt.Sprintf("[me -> %s] %s (%s)", view.Receiver.ID, view.Content, view.Status))
	})

	c.On(domain.EventMessageError, func(raw json.RawMessage) {
		var p domain.MessageErrorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		timeline.OnFailed(p.TempID, p.Message)
		printLine(fmt.Sprintf("[SEND FAILED] %s (retry with /retry %s)", p.Message, p.TempID))
	})

	c.On(domain.EventNewMessage, func(raw json.RawMessage) {
		var view domain.View
		if err := json.Unmarshal(raw, &view); err != nil {
			return
		}
		if timeline.OnIncoming(view) {
			printLine(fmt.Sprintf("[%s] %s", view.Sender.Username, view.Content))
			c.MarkRead(view.ID, view.Sender.ID)
		}
	})

	c.On(domain.EventMessageReadReceipt, func(raw json.RawMessage) {
		var p domain.ReadReceiptPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		timeline.OnRead(p.MessageID)
		printLine(fmt.Sprintf("[read by %s at %s]", p.ReadBy, p.ReadAt.Format("15:04:05")))
	})

	c.On(domain.EventMessagesRead, func(raw json.RawMessage) {
		var p domain.MessagesReadPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		timeline.OnRead(p.MessageIDs...)
		printLine(fmt.Sprintf("[%d messages read by %s]", len(p.MessageIDs), p.ReadBy))
	})

	c.On(domain.EventUserTyping, func(raw json.RawMessage) {
		var p domain.TypingPayload
		if err := json.Unmarshal(raw, &p); err != nil || !p.IsTyping {
			return
		}
		printLine(fmt.Sprintf("[%s is typing...]", p.Username))
	})

	c.On(domain.EventUserOnline, func(raw json.RawMessage) {
		var p domain.PresencePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		printLine(fmt.Sprintf("[%s came online]", p.Username))
	})

	c.On(domain.EventUserOffline, func(raw json.RawMessage) {
		var p domain.PresencePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		printLine(fmt.Sprintf("[%s went offline]", p.Username))
	})

	c.On(domain.EventUserStatusList, func(raw json.RawMessage) {
		var statuses []domain.UserStatus
		if err := json.Unmarshal(raw, &statuses); err != nil {
			return
		}
		for _, s := range statuses {
			state := "offline"
			if s.IsOnline {
				state = "online"
			} else if s.LastSeen != nil {
				state = fmt.Sprintf("offline, last seen %s", s.LastSeen.Format("15:04:05"))
			}
			printLine(fmt.Sprintf("[status] %s: %s", s.UserID, state))
		}
	})

	c.On(domain.EventError, func(raw json.RawMessage) {
		var p domain.ErrorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}
		printLine(fmt.Sprintf("[SERVER ERROR] %s", p.Message))
	})
}

// handleStdin reads terminal commands and drives the connection. Blocks
// until the connection drops or stdin ends.
func handleStdin(c *network.Client, timeline *reconcile.Timeline) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Commands: /msg <user-id> <text>  /join <user-id>  /typing <user-id>  /status <user-id>  /retry <correlation-id>  /list")
	fmt.Print("> ")

	var lastReceiver uuid.UUID

	for {
		select {
		case <-c.Done():
			return
		default:
		}

		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			fmt.Print("> ")
			continue
		}

		switch {
		case strings.HasPrefix(input, "/msg "):
			parts := strings.SplitN(input, " ", 3)
			if len(parts) < 3 {
				printLine("[ERROR] Use: /msg <user-id> <text>")
				break
			}
			receiverID, err := uuid.Parse(parts[1])
			if err != nil {
				printLine("[ERROR] Invalid user id")
				break
			}
			lastReceiver = receiverID
			entry := timeline.CreatePending(parts[2])
			// No key material in the terminal client: the payload goes
			// up as-is and the server relays it opaquely either way.
			c.SendMessage(receiverID, parts[2], parts[2], entry.CorrelationID)
			printLine(fmt.Sprintf("[me -> %s] %s (sending)", parts[1], parts[2]))

		case strings.HasPrefix(input, "/join "):
			if id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(input, "/join "))); err == nil {
				c.JoinConversation(id)
			} else {
				printLine("[ERROR] Invalid user id")
			}

		case strings.HasPrefix(input, "/typing "):
			if id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(input, "/typing "))); err == nil {
				c.SetTyping(id, true)
				go func() {
					time.Sleep(3 * time.Second)
					c.SetTyping(id, false)
				}()
			}

		case strings.HasPrefix(input, "/status "):
			if id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(input, "/status "))); err == nil {
				c.RequestStatus([]uuid.UUID{id})
			}

		case strings.HasPrefix(input, "/retry "):
			corrID := strings.TrimSpace(strings.TrimPrefix(input, "/retry "))
			if entry := timeline.Retry(corrID); entry != nil && lastReceiver != uuid.Nil {
				c.SendMessage(lastReceiver, entry.Content, entry.Content, entry.CorrelationID)
				printLine("[retrying]")
			} else {
				printLine("[ERROR] Nothing to retry")
			}

		case input == "/list":
			for _, e := range timeline.Entries() {
				content := e.Content
				if content == "" && e.Record != nil {
					content = e.Record.Content
				}
				printLine(fmt.Sprintf("%-9s %s", e.State, content))
			}

		default:
			printLine("[ERROR] Unknown command")
		}
		fmt.Print("> ")
	}
}

func printLine(s string) {
	fmt.Printf("\r[%s] %s\n> ", time.Now().Format("15:04:05"), s)
}
