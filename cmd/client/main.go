package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/relaychat/relaychat/internal/client"
	"github.com/relaychat/relaychat/internal/server"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay WebSocket URL")
	origin := flag.String("origin", "http://localhost:8080", "origin header sent on upgrade")
	username := flag.String("username", "", "display name to join with")
	flag.Parse()

	if *username == "" {
		log.Fatal("a -username is required")
	}

	c, err := client.Dial(*addr, *origin, *username)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer c.Close()

	fmt.Printf("Connected as %q. Commands: /join <room>, /create <room>, /switch <room>, /dm <connID> <name>, /users, /rooms, /quit\n", *username)

	go printIncoming(c)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := c.SendText(line); err != nil {
				log.Printf("Send failed: %v", err)
				return
			}
			continue
		}
		if quit := runCommand(c, line); quit {
			return
		}
	}
}

func runCommand(c *client.Client, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit":
		return true

	case "/join":
		if len(args) != 1 {
			fmt.Println("usage: /join <room>")
			return false
		}
		if err := c.JoinRoom(args[0]); err != nil {
			log.Printf("Join failed: %v", err)
		}
		c.SwitchChat(client.ChatTarget{IsChannel: true, Name: args[0]})

	case "/create":
		if len(args) != 1 {
			fmt.Println("usage: /create <room>")
			return false
		}
		if err := c.CreateRoom(args[0]); err != nil {
			log.Printf("Create failed: %v", err)
		}

	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <room>")
			return false
		}
		c.SwitchChat(client.ChatTarget{IsChannel: true, Name: args[0]})

	case "/dm":
		if len(args) != 2 {
			fmt.Println("usage: /dm <connID> <name>")
			return false
		}
		c.SwitchChat(client.ChatTarget{Name: args[1], ReceiverID: args[0]})

	case "/users":
		for _, u := range c.Snapshot().Users {
			fmt.Printf("  %s  %s\n", u.ID, u.Username)
		}

	case "/rooms":
		st := c.Snapshot()
		joined := make(map[string]bool, len(st.JoinedRooms))
		for _, room := range st.JoinedRooms {
			joined[room] = true
		}
		for _, room := range st.Rooms {
			marker := " "
			if joined[room] {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, room)
		}

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return false
}

// printIncoming renders messages of the selected conversation as snapshots
// arrive, tracking how many were already printed per conversation.
func printIncoming(c *client.Client) {
	printed := make(map[string]int)

	for {
		select {
		case <-c.Done():
			fmt.Println("Disconnected from server.")
			os.Exit(0)
		case <-c.Updates():
		}

		st := c.Snapshot()
		name := st.Current.Name
		msgs := st.CurrentMessages()
		for _, msg := range unprinted(msgs, printed[name]) {
			if msg.Kind == server.KindFile {
				fmt.Printf("[%s] %s sent file %s (%s, %d bytes)\n", name, msg.Sender, msg.FileName, msg.MimeType, len(msg.Binary))
				continue
			}
			fmt.Printf("[%s] %s: %s\n", name, msg.Sender, msg.Content)
		}
		printed[name] = len(msgs)
	}
}

// unprinted returns the messages past the already-printed count. A history
// replay can replace the view with a shorter one, so the count is clamped
// rather than trusted as an index.
func unprinted(msgs []server.Message, printedCount int) []server.Message {
	if printedCount > len(msgs) {
		printedCount = len(msgs)
	}
	if printedCount < 0 {
		printedCount = 0
	}
	return msgs[printedCount:]
}
